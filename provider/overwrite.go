// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import "github.com/parlorbot/parlor/lib/ref"

// Flag is one tri-state permission value. The zero value is unset,
// meaning the overwrite expresses no opinion and the guild default
// applies.
type Flag string

const (
	// FlagUnset defers to the guild default.
	FlagUnset Flag = ""
	// FlagAllow explicitly grants the permission.
	FlagAllow Flag = "allow"
	// FlagDeny explicitly denies the permission.
	FlagDeny Flag = "deny"
)

// Overwrite grants or denies view and connect permission for one
// subject on one channel.
type Overwrite struct {
	Subject ref.Subject `json:"subject"`
	View    Flag        `json:"view,omitempty"`
	Connect Flag        `json:"connect,omitempty"`
}

// Overwrites is a channel's full permission-overwrite set. At most one
// entry per subject; the helpers below preserve that.
type Overwrites []Overwrite

// Find returns the overwrite for subject, or a zero Overwrite and
// false when none exists.
func (o Overwrites) Find(subject ref.Subject) (Overwrite, bool) {
	for _, entry := range o {
		if entry.Subject == subject {
			return entry, true
		}
	}
	return Overwrite{}, false
}

// With returns a copy of the set with subject's entry replaced (or
// appended). The receiver is not modified.
func (o Overwrites) With(subject ref.Subject, view, connect Flag) Overwrites {
	updated := make(Overwrites, 0, len(o)+1)
	replaced := false
	for _, entry := range o {
		if entry.Subject == subject {
			updated = append(updated, Overwrite{Subject: subject, View: view, Connect: connect})
			replaced = true
			continue
		}
		updated = append(updated, entry)
	}
	if !replaced {
		updated = append(updated, Overwrite{Subject: subject, View: view, Connect: connect})
	}
	return updated
}

// Without returns a copy of the set with subject's entry removed. The
// receiver is not modified.
func (o Overwrites) Without(subject ref.Subject) Overwrites {
	updated := make(Overwrites, 0, len(o))
	for _, entry := range o {
		if entry.Subject == subject {
			continue
		}
		updated = append(updated, entry)
	}
	return updated
}
