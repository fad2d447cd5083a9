// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"

	"github.com/parlorbot/parlor/lib/ref"
)

// Provider is the capability set Parlor needs from the chat platform.
// The production implementation is *RESTProvider; tests substitute
// fakes. Every method is a single platform round-trip; none retries.
type Provider interface {
	// CreateChannel creates a voice channel in a guild.
	CreateChannel(ctx context.Context, guild ref.GuildID, request CreateChannelRequest) (*Channel, error)

	// GetChannel fetches a channel's current state. Returns an
	// APIError satisfying IsNotFound when the channel does not exist.
	GetChannel(ctx context.Context, channel ref.ChannelID) (*Channel, error)

	// EditChannel applies a partial edit to a channel.
	EditChannel(ctx context.Context, channel ref.ChannelID, request EditChannelRequest) error

	// DeleteChannel deletes a channel.
	DeleteChannel(ctx context.Context, channel ref.ChannelID) error

	// MoveMember moves a voice-connected member into a channel.
	MoveMember(ctx context.Context, guild ref.GuildID, user ref.UserID, channel ref.ChannelID) error

	// DisconnectMember drops a member from voice entirely.
	DisconnectMember(ctx context.Context, guild ref.GuildID, user ref.UserID) error

	// Occupants returns the members currently connected to a voice
	// channel. An empty slice means the channel is empty.
	Occupants(ctx context.Context, channel ref.ChannelID) ([]ref.UserID, error)

	// SendMessage posts a message to a channel and returns its ID.
	SendMessage(ctx context.Context, channel ref.ChannelID, content string) (ref.MessageID, error)

	// CreateThread spins up a discussion thread anchored on a message.
	CreateThread(ctx context.Context, channel ref.ChannelID, message ref.MessageID, name string) (ref.ThreadID, error)

	// DeleteThread deletes a thread.
	DeleteThread(ctx context.Context, thread ref.ThreadID) error

	// NotifyMember delivers a private message to a user.
	NotifyMember(ctx context.Context, user ref.UserID, content string) error

	// MemberDisplayName returns a member's guild-scoped display name.
	MemberDisplayName(ctx context.Context, guild ref.GuildID, user ref.UserID) (string, error)
}

// Compile-time check: *RESTProvider implements Provider.
var _ Provider = (*RESTProvider)(nil)
