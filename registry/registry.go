// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks the live ephemeral channels Parlor currently
// manages. The registry is purely in-memory: on restart it starts
// empty and entries for channels deleted out of band are dropped
// lazily through Reconcile. Persistent state (templates, policy) lives
// elsewhere.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/parlorbot/parlor/lib/ref"
)

// ErrDuplicateOwner is returned by Register when the owner already has
// a live channel. The registry invariant is at most one live channel
// per owner.
var ErrDuplicateOwner = errors.New("registry: owner already has a live channel")

// Entry is one live managed channel.
type Entry struct {
	Channel ref.ChannelID
	Guild   ref.GuildID
	Owner   ref.UserID
	// Thread is the companion discussion thread. Zero when thread
	// creation failed; teardown skips it in that case.
	Thread ref.ThreadID
	// Delegates are the channel's co-managers, kept in sync with the
	// owner's template.
	Delegates []ref.UserID
}

// snapshot copies the entry with its delegate slice detached from the
// registry's, so callers can mutate what they get back.
func (e Entry) snapshot() Entry {
	e.Delegates = slices.Clone(e.Delegates)
	return e
}

// Registry is the in-memory index of live channels, keyed by channel
// with an owner reverse index. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	byChannel map[ref.ChannelID]Entry
	byOwner   map[ref.UserID]ref.ChannelID
}

func New() *Registry {
	return &Registry{
		byChannel: make(map[ref.ChannelID]Entry),
		byOwner:   make(map[ref.UserID]ref.ChannelID),
	}
}

// Register records a newly created channel. It fails with
// ErrDuplicateOwner when the owner already has a live channel, leaving
// the existing entry in place.
func (r *Registry) Register(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOwner[entry.Owner]; exists {
		return fmt.Errorf("%w: owner %s", ErrDuplicateOwner, entry.Owner)
	}
	r.byChannel[entry.Channel] = entry.snapshot()
	r.byOwner[entry.Owner] = entry.Channel
	return nil
}

// SetDelegates replaces the delegate list on a live entry and reports
// whether the channel was registered. Updating an unknown channel is
// not an error: a management command can race a teardown.
func (r *Registry) SetDelegates(channel ref.ChannelID, delegates []ref.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byChannel[channel]
	if !exists {
		return false
	}
	entry.Delegates = slices.Clone(delegates)
	r.byChannel[channel] = entry
	return true
}

// Deregister removes the entry for a channel and returns it, or nil
// when no entry exists. Deregistering an unknown channel is not an
// error: a teardown timer can race an explicit delete.
func (r *Registry) Deregister(channel ref.ChannelID) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byChannel[channel]
	if !exists {
		return nil
	}
	delete(r.byChannel, channel)
	delete(r.byOwner, entry.Owner)
	removed := entry.snapshot()
	return &removed
}

// FindByChannel returns the entry for a channel, or nil.
func (r *Registry) FindByChannel(channel ref.ChannelID) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.byChannel[channel]; exists {
		copied := entry.snapshot()
		return &copied
	}
	return nil
}

// FindByOwner returns the owner's live entry, or nil.
func (r *Registry) FindByOwner(owner ref.UserID) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, exists := r.byOwner[owner]
	if !exists {
		return nil
	}
	entry := r.byChannel[channel].snapshot()
	return &entry
}

// Reconcile returns the owner's live entry after verifying the channel
// still exists through the probe. When the probe reports the channel
// gone the stale entry is dropped and Reconcile returns nil, as if the
// owner never had a channel. Probe errors are returned without
// touching the registry.
func (r *Registry) Reconcile(ctx context.Context, owner ref.UserID, exists func(context.Context, ref.ChannelID) (bool, error)) (*Entry, error) {
	entry := r.FindByOwner(owner)
	if entry == nil {
		return nil, nil
	}

	// The probe is a network round-trip, so it runs outside the lock.
	// A concurrent deregister between probe and drop is harmless:
	// Deregister of a missing entry is a no-op.
	alive, err := exists(ctx, entry.Channel)
	if err != nil {
		return nil, fmt.Errorf("registry: probing channel %s: %w", entry.Channel, err)
	}
	if alive {
		return entry, nil
	}
	r.Deregister(entry.Channel)
	return nil, nil
}

// Entries returns a snapshot of all live entries, in no particular
// order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.byChannel))
	for _, entry := range r.byChannel {
		entries = append(entries, entry.snapshot())
	}
	return entries
}
