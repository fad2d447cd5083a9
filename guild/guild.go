// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package guild holds per-guild state: the access policy that gates
// channel provisioning and the configuration admins set (trigger
// channel, categories). Both live in one SQLite record per guild.
//
// Policy entries can carry an absolute expiry. Expired entries are
// pruned lazily: every read or mutation of a guild's policy excises
// them first, so no background sweeper is needed and an expired ban
// behaves exactly as if it had been removed.
package guild

import (
	"slices"
	"time"

	"github.com/parlorbot/parlor/lib/ref"
)

// Entry is one allow-list or deny-list member.
type Entry struct {
	Subject ref.Subject `json:"subject"`
	// Expiry is the absolute instant the entry stops applying. Zero
	// means permanent.
	Expiry time.Time `json:"expiry,omitzero"`
}

// Live reports whether the entry still applies at now.
func (e Entry) Live(now time.Time) bool {
	return e.Expiry.IsZero() || now.Before(e.Expiry)
}

// Policy is a guild's full access policy. The deny list always wins
// over the allow list; an empty allow list means the guild is open.
type Policy struct {
	Allow []Entry `json:"allow,omitempty"`
	Deny  []Entry `json:"deny,omitempty"`
}

// prune drops expired entries from both lists in place and reports
// whether anything was removed.
func (p *Policy) prune(now time.Time) bool {
	before := len(p.Allow) + len(p.Deny)
	p.Allow = slices.DeleteFunc(p.Allow, func(e Entry) bool { return !e.Live(now) })
	p.Deny = slices.DeleteFunc(p.Deny, func(e Entry) bool { return !e.Live(now) })
	return len(p.Allow)+len(p.Deny) != before
}

// upsert replaces the entry for subject in list, or appends one.
// Granting a subject again refreshes its expiry rather than stacking
// duplicate entries.
func upsert(list []Entry, entry Entry) []Entry {
	for i := range list {
		if list[i].Subject == entry.Subject {
			list[i] = entry
			return list
		}
	}
	return append(list, entry)
}

// remove drops the entry for subject and reports whether it existed.
func remove(list []Entry, subject ref.Subject) ([]Entry, bool) {
	originalLen := len(list)
	trimmed := slices.DeleteFunc(list, func(e Entry) bool { return e.Subject == subject })
	return trimmed, len(trimmed) != originalLen
}

// contains reports whether any of the given subjects appears in list.
func contains(list []Entry, subjects []ref.Subject) bool {
	for _, entry := range list {
		if slices.Contains(subjects, entry.Subject) {
			return true
		}
	}
	return false
}

// Permits evaluates the policy for a member. The policy is assumed
// pruned. Deny wins over everything, including admin status. With no
// deny match, an empty allow list admits everyone; a non-empty allow
// list admits admins and listed subjects only.
func (p *Policy) Permits(user ref.UserID, roles []ref.RoleID, isAdmin bool) bool {
	subjects := make([]ref.Subject, 0, len(roles)+1)
	subjects = append(subjects, ref.UserSubject(user))
	for _, role := range roles {
		subjects = append(subjects, ref.RoleSubject(role))
	}

	if contains(p.Deny, subjects) {
		return false
	}
	if len(p.Allow) == 0 {
		return true
	}
	if isAdmin {
		return true
	}
	return contains(p.Allow, subjects)
}

// Config is a guild's admin-set configuration. Zero fields fall back
// to process-wide defaults at read time.
type Config struct {
	// Trigger is the voice channel whose join provisions a channel.
	Trigger ref.ChannelID `json:"trigger,omitzero"`
	// DefaultCategory is where non-managed operations place channels.
	DefaultCategory ref.CategoryID `json:"default_category,omitzero"`
	// CreationCategory is where provisioned channels are created.
	// Falls back to DefaultCategory when unset.
	CreationCategory ref.CategoryID `json:"creation_category,omitzero"`
}

// Record is the full per-guild document: configuration plus policy.
type Record struct {
	Guild  ref.GuildID `json:"guild"`
	Config Config      `json:"config"`
	Policy Policy      `json:"policy"`
}
