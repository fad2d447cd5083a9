// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle drives the ephemeral-channel state machine. A
// member joining the guild's trigger channel gets a personal voice
// channel provisioned from their saved template; an emptied channel is
// torn down after a grace window; management commands edit the live
// channel and re-snapshot the template.
//
// Every transition goes through the owner's keyed lock, so "check for
// an existing channel, create one if absent" is atomic per owner no
// matter how events are dispatched. Work for distinct owners proceeds
// in parallel.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/parlorbot/parlor/guild"
	"github.com/parlorbot/parlor/lib/clock"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/provider"
	"github.com/parlorbot/parlor/registry"
	"github.com/parlorbot/parlor/template"
)

// DefaultTeardownTimeout is the grace window between a channel
// emptying and its deletion.
const DefaultTeardownTimeout = 5 * time.Minute

// DefaultCapacity is the member cap for first-time owners without a
// saved template.
const DefaultCapacity = 5

// teardownGrace bounds the provider round-trips a firing teardown
// timer may spend. Timer callbacks have no caller context.
const teardownGrace = time.Minute

const accessDeniedNotice = "You are not permitted to create a voice channel in this guild. Ask an admin for access."

// Config holds the controller's collaborators. Provider, Registry,
// Templates, Guilds, and Clock are required.
type Config struct {
	Provider  provider.Provider
	Registry  *registry.Registry
	Templates *template.Store
	Guilds    *guild.Store
	Clock     clock.Clock
	Logger    *slog.Logger

	// TeardownTimeout overrides DefaultTeardownTimeout when positive.
	TeardownTimeout time.Duration

	// DefaultCapacity overrides DefaultCapacity when positive.
	DefaultCapacity int
}

// Controller owns all channel lifecycle transitions.
type Controller struct {
	provider        provider.Provider
	registry        *registry.Registry
	templates       *template.Store
	guilds          *guild.Store
	clock           clock.Clock
	logger          *slog.Logger
	timeout         time.Duration
	defaultCapacity int

	ownerMu    sync.Mutex
	ownerLocks map[ref.UserID]*ownerLock

	timerMu sync.Mutex
	timers  map[ref.ChannelID]*clock.Timer
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("lifecycle: Provider is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("lifecycle: Registry is required")
	}
	if cfg.Templates == nil {
		return nil, fmt.Errorf("lifecycle: Templates is required")
	}
	if cfg.Guilds == nil {
		return nil, fmt.Errorf("lifecycle: Guilds is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("lifecycle: Clock is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.TeardownTimeout
	if timeout <= 0 {
		timeout = DefaultTeardownTimeout
	}
	defaultCapacity := cfg.DefaultCapacity
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}

	return &Controller{
		provider:        cfg.Provider,
		registry:        cfg.Registry,
		templates:       cfg.Templates,
		guilds:          cfg.Guilds,
		clock:           cfg.Clock,
		logger:          logger,
		timeout:         timeout,
		defaultCapacity: defaultCapacity,
		ownerLocks:      make(map[ref.UserID]*ownerLock),
		timers:          make(map[ref.ChannelID]*clock.Timer),
	}, nil
}

// lockOwner serializes transitions for one owner. The returned func
// releases the lock. Lock slots are reclaimed when the last holder
// releases, so the map stays bounded by concurrent activity rather
// than total owners seen.
func (c *Controller) lockOwner(owner ref.UserID) func() {
	c.ownerMu.Lock()
	lock := c.ownerLocks[owner]
	if lock == nil {
		lock = &ownerLock{}
		c.ownerLocks[owner] = lock
	}
	lock.refs++
	c.ownerMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.ownerMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.ownerLocks, owner)
		}
		c.ownerMu.Unlock()
	}
}

// HandleMovement processes one membership-movement event: a join of
// the guild's trigger channel provisions (or re-enters) the member's
// channel, and a managed channel emptying arms its teardown timer.
func (c *Controller) HandleMovement(ctx context.Context, event *provider.MovementEvent) error {
	config, err := c.guilds.GetConfig(ctx, event.Guild)
	if err != nil {
		return err
	}

	// Check the vacated channel first: a member can leave a managed
	// channel and land in the trigger in the same event.
	if !event.From.IsZero() && event.From != event.To {
		if entry := c.registry.FindByChannel(event.From); entry != nil {
			if err := c.maybeArmTeardown(ctx, entry); err != nil {
				c.logger.Error("occupancy check failed",
					"channel_id", entry.Channel, "error", err)
			}
		}
	}

	if !event.To.IsZero() && event.To == config.Trigger {
		return c.handleTrigger(ctx, config, event)
	}
	return nil
}

// handleTrigger provisions the triggering member's channel, or moves
// them into their existing one.
func (c *Controller) handleTrigger(ctx context.Context, config guild.Config, event *provider.MovementEvent) error {
	owner := event.User
	unlock := c.lockOwner(owner)
	defer unlock()

	entry, err := c.registry.Reconcile(ctx, owner, c.channelExists)
	if err != nil {
		return err
	}

	permitted, err := c.guilds.IsPermitted(ctx, event.Guild, owner, event.Roles, event.IsAdmin)
	if err != nil {
		return err
	}
	if !permitted {
		if err := c.provider.NotifyMember(ctx, owner, accessDeniedNotice); err != nil {
			c.logger.Debug("denial notice failed", "user_id", owner, "error", err)
		}
		return fmt.Errorf("%w: user %s in guild %s", ErrPolicyDenied, owner, event.Guild)
	}

	if entry != nil {
		// The owner already has a live channel. Move them back in
		// instead of creating a second one.
		if err := c.provider.MoveMember(ctx, event.Guild, owner, entry.Channel); err != nil {
			return fmt.Errorf("lifecycle: moving %s into existing channel %s: %w", owner, entry.Channel, err)
		}
		c.logger.Info("owner re-entered live channel",
			"owner_id", owner, "channel_id", entry.Channel)
		return nil
	}

	return c.createChannel(ctx, config, event)
}

// createChannel provisions a channel from the owner's template, or
// from defaults when they have none. Called with the owner lock held.
func (c *Controller) createChannel(ctx context.Context, config guild.Config, event *provider.MovementEvent) error {
	owner := event.User

	spec, err := c.templates.Get(ctx, owner)
	if err != nil {
		return err
	}
	fromTemplate := spec != nil
	if spec == nil {
		displayName, err := c.provider.MemberDisplayName(ctx, event.Guild, owner)
		if err != nil {
			return fmt.Errorf("lifecycle: resolving display name for %s: %w", owner, err)
		}
		spec = &template.Template{
			Owner:    owner,
			Name:     displayName + "'s channel",
			Capacity: c.defaultCapacity,
			Visible:  true,
		}
	}

	channel, err := c.provider.CreateChannel(ctx, event.Guild, provider.CreateChannelRequest{
		Name:       spec.Name,
		Category:   config.CreationCategory,
		Capacity:   spec.Capacity,
		Overwrites: spec.Overwrites(event.Guild),
	})
	if err != nil {
		return fmt.Errorf("lifecycle: creating channel for %s: %w", owner, err)
	}

	if err := c.provider.MoveMember(ctx, event.Guild, owner, channel.ID); err != nil {
		// The owner never arrived. Remove the channel rather than
		// leave an empty orphan nothing tracks.
		if deleteErr := c.provider.DeleteChannel(ctx, channel.ID); deleteErr != nil {
			c.logger.Error("orphan cleanup failed",
				"channel_id", channel.ID, "error", deleteErr)
		}
		return fmt.Errorf("lifecycle: moving %s into new channel %s: %w", owner, channel.ID, err)
	}

	entry := registry.Entry{
		Channel:   channel.ID,
		Guild:     event.Guild,
		Owner:     owner,
		Delegates: spec.Delegates,
	}

	// The management summary and companion thread are conveniences.
	// Their failure never fails the transition.
	if messageID, err := c.provider.SendMessage(ctx, channel.ID, managementSummary(spec)); err != nil {
		c.logger.Debug("summary message failed", "channel_id", channel.ID, "error", err)
	} else if threadID, err := c.provider.CreateThread(ctx, channel.ID, messageID, spec.Name); err != nil {
		c.logger.Debug("companion thread failed", "channel_id", channel.ID, "error", err)
	} else {
		entry.Thread = threadID
	}

	if err := c.registry.Register(entry); err != nil {
		return err
	}
	c.logger.Info("channel provisioned",
		"owner_id", owner,
		"guild_id", event.Guild,
		"channel_id", channel.ID,
		"name", spec.Name,
		"from_template", fromTemplate,
	)
	return nil
}

func managementSummary(spec *template.Template) string {
	visibility := "visible"
	if !spec.Visible {
		visibility = "hidden"
	}
	access := "open"
	if spec.Locked {
		access = "locked"
	}
	capacity := "unlimited"
	if spec.Capacity > 0 {
		capacity = fmt.Sprintf("%d members", spec.Capacity)
	}
	return fmt.Sprintf("**%s** is ready: %s, %s, capacity %s. Manage it with the channel commands.",
		spec.Name, visibility, access, capacity)
}

// channelExists is the registry reconcile probe.
func (c *Controller) channelExists(ctx context.Context, channel ref.ChannelID) (bool, error) {
	if _, err := c.provider.GetChannel(ctx, channel); err != nil {
		if provider.IsNotFound(err) {
			c.stopTeardown(channel)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// maybeArmTeardown samples a managed channel's occupancy and arms the
// teardown timer when it is empty. Re-arming replaces any pending
// timer, so a re-emptied channel always gets a fresh full window.
func (c *Controller) maybeArmTeardown(ctx context.Context, entry *registry.Entry) error {
	occupants, err := c.provider.Occupants(ctx, entry.Channel)
	if err != nil {
		if provider.IsNotFound(err) {
			c.registry.Deregister(entry.Channel)
			c.stopTeardown(entry.Channel)
			return nil
		}
		return err
	}
	if len(occupants) > 0 {
		return nil
	}

	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if existing := c.timers[entry.Channel]; existing != nil {
		existing.Stop()
	}
	channel := entry.Channel
	c.timers[channel] = c.clock.AfterFunc(c.timeout, func() {
		c.teardownFired(channel)
	})
	c.logger.Debug("teardown armed",
		"channel_id", channel, "timeout", c.timeout)
	return nil
}

// stopTeardown cancels and forgets the pending timer for a channel.
func (c *Controller) stopTeardown(channel ref.ChannelID) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if timer := c.timers[channel]; timer != nil {
		timer.Stop()
		delete(c.timers, channel)
	}
}

// teardownFired runs when a channel's grace window elapses. Occupancy
// is re-sampled at fire time: members may have returned since the
// channel emptied, in which case the teardown is abandoned.
func (c *Controller) teardownFired(channel ref.ChannelID) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownGrace)
	defer cancel()

	c.timerMu.Lock()
	delete(c.timers, channel)
	c.timerMu.Unlock()

	entry := c.registry.FindByChannel(channel)
	if entry == nil {
		// Explicitly deleted, or torn down through reconciliation,
		// while the timer was pending.
		return
	}

	unlock := c.lockOwner(entry.Owner)
	defer unlock()
	if c.registry.FindByChannel(channel) == nil {
		return
	}

	occupants, err := c.provider.Occupants(ctx, channel)
	if err != nil {
		if provider.IsNotFound(err) {
			c.registry.Deregister(channel)
			return
		}
		// Leave the entry alone. The next emptying event arms a
		// fresh timer.
		c.logger.Error("teardown occupancy check failed",
			"channel_id", channel, "error", err)
		return
	}
	if len(occupants) > 0 {
		c.logger.Debug("teardown abandoned, channel repopulated",
			"channel_id", channel, "occupants", len(occupants))
		return
	}

	if err := c.removeChannel(ctx, entry); err != nil {
		c.logger.Error("teardown failed", "channel_id", channel, "error", err)
	}
}

// removeChannel deletes a managed channel, its companion thread, and
// its registry entry. Called with the owner lock held. A channel
// already gone on the platform still gets deregistered.
func (c *Controller) removeChannel(ctx context.Context, entry *registry.Entry) error {
	if err := c.provider.DeleteChannel(ctx, entry.Channel); err != nil && !provider.IsNotFound(err) {
		return fmt.Errorf("lifecycle: deleting channel %s: %w", entry.Channel, err)
	}
	if !entry.Thread.IsZero() {
		if err := c.provider.DeleteThread(ctx, entry.Thread); err != nil {
			c.logger.Debug("companion thread deletion failed",
				"thread_id", entry.Thread, "error", err)
		}
	}
	c.registry.Deregister(entry.Channel)
	c.logger.Info("channel removed",
		"owner_id", entry.Owner, "channel_id", entry.Channel)
	return nil
}

// PendingTeardowns reports the number of armed teardown timers.
func (c *Controller) PendingTeardowns() int {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return len(c.timers)
}
