// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// MessageID identifies a message posted to a channel. Parlor uses
// message IDs as anchors for companion threads.
type MessageID struct {
	id string
}

// ParseMessageID constructs a validated MessageID from a raw snowflake
// string.
func ParseMessageID(raw string) (MessageID, error) {
	if err := validateSnowflake("message ID", raw); err != nil {
		return MessageID{}, err
	}
	return MessageID{id: raw}, nil
}

// MustParseMessageID is ParseMessageID that panics on invalid input.
func MustParseMessageID(raw string) MessageID {
	id, err := ParseMessageID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (m MessageID) String() string { return m.id }

// IsZero reports whether the MessageID is the zero value.
func (m MessageID) IsZero() bool { return m.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (m MessageID) MarshalText() ([]byte, error) {
	if m.id == "" {
		return nil, fmt.Errorf("cannot marshal zero MessageID")
	}
	return []byte(m.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MessageID) UnmarshalText(data []byte) error {
	parsed, err := ParseMessageID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal MessageID: %w", err)
	}
	*m = parsed
	return nil
}

// ThreadID identifies a discussion thread hanging off a message. The
// companion thread of a live channel is optional: a live channel whose
// thread creation failed carries a zero ThreadID.
type ThreadID struct {
	id string
}

// ParseThreadID constructs a validated ThreadID from a raw snowflake
// string.
func ParseThreadID(raw string) (ThreadID, error) {
	if err := validateSnowflake("thread ID", raw); err != nil {
		return ThreadID{}, err
	}
	return ThreadID{id: raw}, nil
}

// MustParseThreadID is ParseThreadID that panics on invalid input.
func MustParseThreadID(raw string) ThreadID {
	id, err := ParseThreadID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (t ThreadID) String() string { return t.id }

// IsZero reports whether the ThreadID is the zero value.
func (t ThreadID) IsZero() bool { return t.id == "" }

// MarshalText implements encoding.TextMarshaler. A zero ThreadID
// marshals to an empty string because the companion thread is optional.
func (t ThreadID) MarshalText() ([]byte, error) {
	return []byte(t.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value, matching MarshalText.
func (t *ThreadID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = ThreadID{}
		return nil
	}
	parsed, err := ParseThreadID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal ThreadID: %w", err)
	}
	*t = parsed
	return nil
}
