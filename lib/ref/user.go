// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID identifies a platform user (a guild member).
type UserID struct {
	id string
}

// ParseUserID constructs a validated UserID from a raw snowflake string.
func ParseUserID(raw string) (UserID, error) {
	if err := validateSnowflake("user ID", raw); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is ParseUserID that panics on invalid input. For
// tests and compile-time-constant IDs only.
func MustParseUserID(raw string) UserID {
	id, err := ParseUserID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	if u.id == "" {
		return nil, fmt.Errorf("cannot marshal zero UserID")
	}
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UserID) UnmarshalText(data []byte) error {
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal UserID: %w", err)
	}
	*u = parsed
	return nil
}

// RoleID identifies a guild role. Every guild has a default role whose
// ID equals the guild ID; that role stands for the whole population in
// permission overwrites and policy entries.
type RoleID struct {
	id string
}

// ParseRoleID constructs a validated RoleID from a raw snowflake string.
func ParseRoleID(raw string) (RoleID, error) {
	if err := validateSnowflake("role ID", raw); err != nil {
		return RoleID{}, err
	}
	return RoleID{id: raw}, nil
}

// MustParseRoleID is ParseRoleID that panics on invalid input.
func MustParseRoleID(raw string) RoleID {
	id, err := ParseRoleID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (r RoleID) String() string { return r.id }

// IsZero reports whether the RoleID is the zero value.
func (r RoleID) IsZero() bool { return r.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RoleID) MarshalText() ([]byte, error) {
	if r.id == "" {
		return nil, fmt.Errorf("cannot marshal zero RoleID")
	}
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RoleID) UnmarshalText(data []byte) error {
	parsed, err := ParseRoleID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal RoleID: %w", err)
	}
	*r = parsed
	return nil
}
