// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/provider"
	"github.com/parlorbot/parlor/registry"
	"github.com/parlorbot/parlor/template"
)

// maxNameLength is the platform's channel name limit.
const maxNameLength = 100

// managed is a resolved command target: the registry entry, the live
// channel state, and the entry's delegate list.
type managed struct {
	entry     *registry.Entry
	channel   *provider.Channel
	delegates []ref.UserID
}

// resolve finds the live channel the actor manages, as owner or
// delegate. Stale registry entries discovered along the way are
// dropped silently, exactly as if the channel had never existed.
func (c *Controller) resolve(ctx context.Context, guildID ref.GuildID, actor ref.UserID) (*managed, error) {
	if entry := c.registry.FindByOwner(actor); entry != nil {
		channel, err := c.provider.GetChannel(ctx, entry.Channel)
		if err != nil {
			if provider.IsNotFound(err) {
				c.registry.Deregister(entry.Channel)
				c.stopTeardown(entry.Channel)
				return nil, ErrNotOwner
			}
			return nil, fmt.Errorf("lifecycle: fetching channel %s: %w", entry.Channel, err)
		}
		return &managed{
			entry:     entry,
			channel:   channel,
			delegates: entry.Delegates,
		}, nil
	}

	// Not an owner. Scan the guild's live channels for one the actor
	// delegates for. Delegation lives on the registry entry, restored
	// from the owner's template whenever the channel is recreated.
	for _, entry := range c.registry.Entries() {
		if entry.Guild != guildID || !slices.Contains(entry.Delegates, actor) {
			continue
		}
		channel, err := c.provider.GetChannel(ctx, entry.Channel)
		if err != nil {
			if provider.IsNotFound(err) {
				c.registry.Deregister(entry.Channel)
				c.stopTeardown(entry.Channel)
				continue
			}
			return nil, fmt.Errorf("lifecycle: fetching channel %s: %w", entry.Channel, err)
		}
		resolved := entry
		return &managed{entry: &resolved, channel: channel, delegates: entry.Delegates}, nil
	}
	return nil, ErrNotOwner
}

// editManaged runs one management edit end to end: resolve the
// actor's channel, apply the edit through the provider, then
// re-derive and persist the owner's template from the post-edit
// state. The mutate callback updates m.channel and m.delegates to the
// post-edit state and returns the provider edit to apply.
func (c *Controller) editManaged(ctx context.Context, guildID ref.GuildID, actor ref.UserID, mutate func(m *managed) (provider.EditChannelRequest, error)) (*managed, error) {
	m, err := c.resolve(ctx, guildID, actor)
	if err != nil {
		return nil, err
	}

	unlock := c.lockOwner(m.entry.Owner)
	defer unlock()

	request, err := mutate(m)
	if err != nil {
		return nil, err
	}
	if err := c.provider.EditChannel(ctx, m.entry.Channel, request); err != nil {
		return nil, fmt.Errorf("lifecycle: editing channel %s: %w", m.entry.Channel, err)
	}
	if _, err := c.templates.DeriveAndSave(ctx, m.entry.Owner, m.channel, m.delegates); err != nil {
		return nil, err
	}
	c.registry.SetDelegates(m.entry.Channel, m.delegates)
	return m, nil
}

// Rename changes the channel's name.
func (c *Controller) Rename(ctx context.Context, guildID ref.GuildID, actor ref.UserID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: channel name must not be empty", ErrValidation)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: channel name exceeds %d characters", ErrValidation, maxNameLength)
	}
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		m.channel.Name = name
		return provider.EditChannelRequest{Name: &name}, nil
	})
	return err
}

// SetCapacity changes the channel's member cap. Zero means unlimited.
func (c *Controller) SetCapacity(ctx context.Context, guildID ref.GuildID, actor ref.UserID, capacity int) error {
	if capacity < 0 || capacity > template.MaxCapacity {
		return fmt.Errorf("%w: capacity %d outside [0,%d]", ErrValidation, capacity, template.MaxCapacity)
	}
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		m.channel.Capacity = capacity
		return provider.EditChannelRequest{Capacity: &capacity}, nil
	})
	return err
}

// Invite grants a user explicit view and connect access, clearing any
// earlier kick of the same user. The view grant matters on hidden
// channels, where connect alone would leave the invitee unable to see
// what they were invited to.
func (c *Controller) Invite(ctx context.Context, guildID ref.GuildID, actor, user ref.UserID) error {
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		if user == m.entry.Owner {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: the owner needs no invitation", ErrValidation)
		}
		if slices.Contains(m.delegates, user) {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: %s is a delegate and already has access", ErrValidation, user)
		}
		m.channel.Overwrites = m.channel.Overwrites.With(
			ref.UserSubject(user), provider.FlagAllow, provider.FlagAllow)
		return provider.EditChannelRequest{Overwrites: m.channel.Overwrites}, nil
	})
	return err
}

// Kick denies a user connect access and drops them from the channel
// if they are in it. Kicking a delegate also revokes the delegation.
func (c *Controller) Kick(ctx context.Context, guildID ref.GuildID, actor, user ref.UserID) error {
	m, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		if user == m.entry.Owner {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: the owner cannot be kicked", ErrValidation)
		}
		m.delegates = slices.DeleteFunc(m.delegates, func(d ref.UserID) bool { return d == user })
		m.channel.Overwrites = m.channel.Overwrites.With(
			ref.UserSubject(user), provider.FlagUnset, provider.FlagDeny)
		return provider.EditChannelRequest{Overwrites: m.channel.Overwrites}, nil
	})
	if err != nil {
		return err
	}

	// Eject the user if they are currently connected. The overwrite
	// already blocks re-entry, so a failure here only delays them
	// leaving.
	occupants, err := c.provider.Occupants(ctx, m.entry.Channel)
	if err != nil {
		c.logger.Debug("kick occupancy check failed",
			"channel_id", m.entry.Channel, "error", err)
		return nil
	}
	if slices.Contains(occupants, user) {
		if err := c.provider.DisconnectMember(ctx, guildID, user); err != nil {
			c.logger.Debug("kick disconnect failed", "user_id", user, "error", err)
		}
	}
	return nil
}

// Lock denies connect access to everyone without an explicit grant.
func (c *Controller) Lock(ctx context.Context, guildID ref.GuildID, actor ref.UserID) error {
	return c.setEveryoneFlags(ctx, guildID, actor, func(view, connect provider.Flag) (provider.Flag, provider.Flag) {
		return view, provider.FlagDeny
	})
}

// Unlock restores default connect access.
func (c *Controller) Unlock(ctx context.Context, guildID ref.GuildID, actor ref.UserID) error {
	return c.setEveryoneFlags(ctx, guildID, actor, func(view, connect provider.Flag) (provider.Flag, provider.Flag) {
		return view, provider.FlagUnset
	})
}

// SetVisible makes the channel appear in the guild's channel list.
func (c *Controller) SetVisible(ctx context.Context, guildID ref.GuildID, actor ref.UserID) error {
	return c.setEveryoneFlags(ctx, guildID, actor, func(view, connect provider.Flag) (provider.Flag, provider.Flag) {
		return provider.FlagUnset, connect
	})
}

// SetInvisible hides the channel from members without explicit
// access.
func (c *Controller) SetInvisible(ctx context.Context, guildID ref.GuildID, actor ref.UserID) error {
	return c.setEveryoneFlags(ctx, guildID, actor, func(view, connect provider.Flag) (provider.Flag, provider.Flag) {
		return provider.FlagDeny, connect
	})
}

// setEveryoneFlags edits the everyone-role overwrite. When both flags
// end up unset the overwrite is removed entirely, which is the same
// normalization template derivation applies.
func (c *Controller) setEveryoneFlags(ctx context.Context, guildID ref.GuildID, actor ref.UserID, change func(view, connect provider.Flag) (provider.Flag, provider.Flag)) error {
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		everyone := ref.RoleSubject(guildID.EveryoneRole())
		current, _ := m.channel.Overwrites.Find(everyone)
		view, connect := change(current.View, current.Connect)
		if view == provider.FlagUnset && connect == provider.FlagUnset {
			m.channel.Overwrites = m.channel.Overwrites.Without(everyone)
		} else {
			m.channel.Overwrites = m.channel.Overwrites.With(everyone, view, connect)
		}
		return provider.EditChannelRequest{Overwrites: m.channel.Overwrites}, nil
	})
	return err
}

// AddDelegate grants a user the full management permission set.
func (c *Controller) AddDelegate(ctx context.Context, guildID ref.GuildID, actor, user ref.UserID) error {
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		if user == m.entry.Owner {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: the owner is not a delegate", ErrValidation)
		}
		if slices.Contains(m.delegates, user) {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: %s is already a delegate", ErrValidation, user)
		}
		m.delegates = append(m.delegates, user)
		m.channel.Overwrites = m.channel.Overwrites.With(
			ref.UserSubject(user), provider.FlagAllow, provider.FlagAllow)
		return provider.EditChannelRequest{Overwrites: m.channel.Overwrites}, nil
	})
	return err
}

// RemoveDelegate revokes a user's delegation.
func (c *Controller) RemoveDelegate(ctx context.Context, guildID ref.GuildID, actor, user ref.UserID) error {
	_, err := c.editManaged(ctx, guildID, actor, func(m *managed) (provider.EditChannelRequest, error) {
		if !slices.Contains(m.delegates, user) {
			return provider.EditChannelRequest{}, fmt.Errorf("%w: %s is not a delegate", ErrValidation, user)
		}
		m.delegates = slices.DeleteFunc(m.delegates, func(d ref.UserID) bool { return d == user })
		m.channel.Overwrites = m.channel.Overwrites.Without(ref.UserSubject(user))
		return provider.EditChannelRequest{Overwrites: m.channel.Overwrites}, nil
	})
	return err
}

// Delete tears the actor's channel down immediately. The pending
// teardown timer, if armed, is stopped; the template survives so the
// next trigger recreates the channel as it was.
func (c *Controller) Delete(ctx context.Context, guildID ref.GuildID, actor ref.UserID) error {
	m, err := c.resolve(ctx, guildID, actor)
	if err != nil {
		return err
	}

	unlock := c.lockOwner(m.entry.Owner)
	defer unlock()

	c.stopTeardown(m.entry.Channel)
	return c.removeChannel(ctx, m.entry)
}
