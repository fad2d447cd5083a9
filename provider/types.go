// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import "github.com/parlorbot/parlor/lib/ref"

// CreateChannelRequest holds the parameters for creating a voice
// channel.
type CreateChannelRequest struct {
	Name       string         `json:"name"`
	Category   ref.CategoryID `json:"parent_id,omitempty"`
	Capacity   int            `json:"user_limit"` // 0 = unlimited
	Overwrites Overwrites     `json:"permission_overwrites,omitempty"`
}

// EditChannelRequest holds a partial channel edit. Nil fields are left
// unchanged; a non-nil Overwrites replaces the whole overwrite set.
type EditChannelRequest struct {
	Name       *string    `json:"name,omitempty"`
	Capacity   *int       `json:"user_limit,omitempty"`
	Overwrites Overwrites `json:"permission_overwrites,omitempty"`
}

// Channel is the platform's view of a channel.
type Channel struct {
	ID         ref.ChannelID  `json:"id"`
	Guild      ref.GuildID    `json:"guild_id"`
	Name       string         `json:"name"`
	Category   ref.CategoryID `json:"parent_id,omitempty"`
	Capacity   int            `json:"user_limit"`
	Overwrites Overwrites     `json:"permission_overwrites,omitempty"`
}

// MovementEvent reports one member moving between voice channels.
// From is zero when the member was in no channel before; To is zero
// when the member disconnected. Roles and IsAdmin describe the member
// at event time, so policy evaluation needs no extra round-trip.
type MovementEvent struct {
	Guild   ref.GuildID   `json:"guild_id"`
	User    ref.UserID    `json:"user_id"`
	From    ref.ChannelID `json:"from_channel_id,omitempty"`
	To      ref.ChannelID `json:"to_channel_id,omitempty"`
	Roles   []ref.RoleID  `json:"roles,omitempty"`
	IsAdmin bool          `json:"is_admin,omitempty"`
}

// CommandEvent reports one slash command or management-control
// interaction issued by a guild member.
type CommandEvent struct {
	Guild   ref.GuildID  `json:"guild_id"`
	Actor   ref.UserID   `json:"actor_id"`
	Roles   []ref.RoleID `json:"roles,omitempty"`
	IsAdmin bool         `json:"is_admin,omitempty"`
	Name    string       `json:"name"`
	Args    []string     `json:"args,omitempty"`
}

// GatewayEvent is the envelope the gateway long-poll returns. Exactly
// one of Movement and Command is set, selected by Type.
type GatewayEvent struct {
	Type     string         `json:"type"` // "movement" or "command"
	Movement *MovementEvent `json:"movement,omitempty"`
	Command  *CommandEvent  `json:"command,omitempty"`
}

// Gateway event types.
const (
	EventMovement = "movement"
	EventCommand  = "command"
)
