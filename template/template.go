// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package template persists each owner's preferred channel
// configuration. A template is a derived mirror of the owner's last
// live channel: it is only ever written by snapshotting real channel
// state, never edited directly, so the stored record can't drift from
// anything the platform actually accepted.
package template

import (
	"fmt"
	"slices"

	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/provider"
)

// MaxCapacity is the largest member cap the platform accepts for a
// voice channel. Zero means unlimited.
const MaxCapacity = 99

// Template is one owner's saved channel configuration.
type Template struct {
	Owner    ref.UserID `json:"owner"`
	Name     string     `json:"name"`
	Capacity int        `json:"capacity"` // 0 = unlimited
	Visible  bool       `json:"visible"`
	Locked   bool       `json:"locked"`
	// Invited holds users with an explicit view and connect grant on
	// the channel, excluding the owner and delegates. The view grant
	// keeps hidden channels reachable for invitees.
	Invited []ref.UserID `json:"invited,omitempty"`
	// Kicked holds users with an explicit connect denial.
	Kicked []ref.UserID `json:"kicked,omitempty"`
	// Delegates are co-managers, in grant order. Delegates hold the
	// full management permission set of the owner.
	Delegates []ref.UserID `json:"delegates,omitempty"`
}

// Derive reconstructs a template from a live channel's state. The
// everyone-role overwrite maps to visibility and lock; its absence
// means visible and unlocked. User overwrites map to the invited and
// kicked sets except for the owner and delegates, whose overwrites
// exist for management access rather than invitation.
func Derive(owner ref.UserID, channel *provider.Channel, delegates []ref.UserID) (*Template, error) {
	if channel == nil {
		return nil, fmt.Errorf("template: nil channel snapshot")
	}
	if channel.Capacity < 0 || channel.Capacity > MaxCapacity {
		return nil, fmt.Errorf("template: channel capacity %d outside [0,%d]", channel.Capacity, MaxCapacity)
	}

	derived := &Template{
		Owner:     owner,
		Name:      channel.Name,
		Capacity:  channel.Capacity,
		Visible:   true,
		Locked:    false,
		Delegates: slices.Clone(delegates),
	}

	everyone := ref.RoleSubject(channel.Guild.EveryoneRole())
	if entry, found := channel.Overwrites.Find(everyone); found {
		derived.Visible = entry.View != provider.FlagDeny
		derived.Locked = entry.Connect == provider.FlagDeny
	}

	for _, entry := range channel.Overwrites {
		if !entry.Subject.IsUser() {
			continue
		}
		user := entry.Subject.UserID()
		if user == owner || slices.Contains(delegates, user) {
			continue
		}
		switch entry.Connect {
		case provider.FlagAllow:
			derived.Invited = append(derived.Invited, user)
		case provider.FlagDeny:
			derived.Kicked = append(derived.Kicked, user)
		}
	}

	return derived, nil
}

// Overwrites builds the permission-overwrite set a channel needs to
// realize this template: management access for owner and delegates,
// view and connect grants for the invited, connect denials for the
// kicked, and the everyone-role entry when the template is hidden or
// locked.
func (t *Template) Overwrites(guild ref.GuildID) provider.Overwrites {
	var set provider.Overwrites

	set = set.With(ref.UserSubject(t.Owner), provider.FlagAllow, provider.FlagAllow)
	for _, delegate := range t.Delegates {
		set = set.With(ref.UserSubject(delegate), provider.FlagAllow, provider.FlagAllow)
	}
	for _, user := range t.Invited {
		set = set.With(ref.UserSubject(user), provider.FlagAllow, provider.FlagAllow)
	}
	for _, user := range t.Kicked {
		set = set.With(ref.UserSubject(user), provider.FlagUnset, provider.FlagDeny)
	}

	view := provider.FlagUnset
	if !t.Visible {
		view = provider.FlagDeny
	}
	connect := provider.FlagUnset
	if t.Locked {
		connect = provider.FlagDeny
	}
	if view != provider.FlagUnset || connect != provider.FlagUnset {
		set = set.With(ref.RoleSubject(guild.EveryoneRole()), view, connect)
	}

	return set
}
