// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/parlorbot/parlor/command"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/lifecycle"
	"github.com/parlorbot/parlor/provider"
)

// queueDepth bounds each guild's event backlog. The gateway read loop
// blocks when a guild falls this far behind, which backpressures the
// long poll rather than dropping events.
const queueDepth = 64

// dispatcher fans gateway events out to one worker goroutine per
// guild. Events for the same guild are processed strictly in arrival
// order; guilds never block each other.
type dispatcher struct {
	controller *lifecycle.Controller
	router     *command.Router
	logger     *slog.Logger

	// process handles one event; workers call it for every dequeued
	// item. Tests replace it to observe scheduling.
	process func(ctx context.Context, event provider.GatewayEvent)

	mu     sync.Mutex
	queues map[ref.GuildID]chan queued
	wg     sync.WaitGroup
	closed bool
}

type queued struct {
	ctx   context.Context
	event provider.GatewayEvent
}

func newDispatcher(controller *lifecycle.Controller, router *command.Router, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		controller: controller,
		router:     router,
		logger:     logger,
		queues:     make(map[ref.GuildID]chan queued),
	}
	d.process = d.handle
	return d
}

// dispatch routes one event to its guild's worker, starting the
// worker on first sight of the guild.
func (d *dispatcher) dispatch(ctx context.Context, event provider.GatewayEvent) {
	guildID, known := eventGuild(event)
	if !known {
		d.logger.Warn("event without guild dropped", "type", event.Type)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	queue, exists := d.queues[guildID]
	if !exists {
		queue = make(chan queued, queueDepth)
		d.queues[guildID] = queue
		d.wg.Add(1)
		go d.work(guildID, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- queued{ctx: ctx, event: event}:
	case <-ctx.Done():
	}
}

func eventGuild(event provider.GatewayEvent) (ref.GuildID, bool) {
	switch event.Type {
	case provider.EventMovement:
		if event.Movement != nil {
			return event.Movement.Guild, true
		}
	case provider.EventCommand:
		if event.Command != nil {
			return event.Command.Guild, true
		}
	}
	return ref.GuildID{}, false
}

// work processes one guild's events in order until the queue closes.
func (d *dispatcher) work(guildID ref.GuildID, queue <-chan queued) {
	defer d.wg.Done()
	for item := range queue {
		d.process(item.ctx, item.event)
	}
}

func (d *dispatcher) handle(ctx context.Context, event provider.GatewayEvent) {
	var err error
	switch event.Type {
	case provider.EventMovement:
		err = d.controller.HandleMovement(ctx, event.Movement)
	case provider.EventCommand:
		err = d.router.HandleCommand(ctx, event.Command)
	default:
		d.logger.Debug("unknown event type ignored", "type", event.Type)
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrPolicyDenied),
		errors.Is(err, lifecycle.ErrNotOwner),
		errors.Is(err, lifecycle.ErrValidation):
		// Expected outcomes; the member already got a reply.
		d.logger.Info("event rejected", "type", event.Type, "error", err)
	default:
		d.logger.Error("event handling failed", "type", event.Type, "error", err)
	}
}

// close stops accepting events and waits for every worker to drain.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
