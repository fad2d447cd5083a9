// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// GuildID identifies a guild (a server on the chat platform).
type GuildID struct {
	id string
}

// ParseGuildID constructs a validated GuildID from a raw snowflake string.
func ParseGuildID(raw string) (GuildID, error) {
	if err := validateSnowflake("guild ID", raw); err != nil {
		return GuildID{}, err
	}
	return GuildID{id: raw}, nil
}

// MustParseGuildID is ParseGuildID that panics on invalid input.
func MustParseGuildID(raw string) GuildID {
	id, err := ParseGuildID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the raw snowflake string.
func (g GuildID) String() string { return g.id }

// IsZero reports whether the GuildID is the zero value.
func (g GuildID) IsZero() bool { return g.id == "" }

// EveryoneRole returns the guild's default role. The platform assigns
// the default role the same snowflake as the guild itself.
func (g GuildID) EveryoneRole() RoleID { return RoleID{id: g.id} }

// MarshalText implements encoding.TextMarshaler.
func (g GuildID) MarshalText() ([]byte, error) {
	if g.id == "" {
		return nil, fmt.Errorf("cannot marshal zero GuildID")
	}
	return []byte(g.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GuildID) UnmarshalText(data []byte) error {
	parsed, err := ParseGuildID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal GuildID: %w", err)
	}
	*g = parsed
	return nil
}
