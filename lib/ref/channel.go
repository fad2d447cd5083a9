// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// ChannelID identifies a voice or text channel within a guild.
type ChannelID struct {
	id string
}

// ParseChannelID constructs a validated ChannelID from a raw snowflake
// string.
func ParseChannelID(raw string) (ChannelID, error) {
	if err := validateSnowflake("channel ID", raw); err != nil {
		return ChannelID{}, err
	}
	return ChannelID{id: raw}, nil
}

// MustParseChannelID is ParseChannelID that panics on invalid input.
func MustParseChannelID(raw string) ChannelID {
	id, err := ParseChannelID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (c ChannelID) String() string { return c.id }

// IsZero reports whether the ChannelID is the zero value.
func (c ChannelID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (c ChannelID) MarshalText() ([]byte, error) {
	if c.id == "" {
		return nil, fmt.Errorf("cannot marshal zero ChannelID")
	}
	return []byte(c.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ChannelID) UnmarshalText(data []byte) error {
	parsed, err := ParseChannelID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal ChannelID: %w", err)
	}
	*c = parsed
	return nil
}

// CategoryID identifies a channel category within a guild. Categories
// are containers channels are created under; Parlor never creates or
// deletes categories, it only places channels into them.
type CategoryID struct {
	id string
}

// ParseCategoryID constructs a validated CategoryID from a raw
// snowflake string.
func ParseCategoryID(raw string) (CategoryID, error) {
	if err := validateSnowflake("category ID", raw); err != nil {
		return CategoryID{}, err
	}
	return CategoryID{id: raw}, nil
}

// MustParseCategoryID is ParseCategoryID that panics on invalid input.
func MustParseCategoryID(raw string) CategoryID {
	id, err := ParseCategoryID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (c CategoryID) String() string { return c.id }

// IsZero reports whether the CategoryID is the zero value.
func (c CategoryID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler. A zero CategoryID
// marshals to an empty string: the creation category is optional in
// guild configuration and "unset" must survive serialization.
func (c CategoryID) MarshalText() ([]byte, error) {
	return []byte(c.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value, matching MarshalText.
func (c *CategoryID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = CategoryID{}
		return nil
	}
	parsed, err := ParseCategoryID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal CategoryID: %w", err)
	}
	*c = parsed
	return nil
}
