// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package command routes gateway command events to the lifecycle
// controller and the guild store. It is deliberately thin: argument
// parsing and reply text live here, all behavior lives behind it.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/parlorbot/parlor/guild"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/lifecycle"
	"github.com/parlorbot/parlor/provider"
)

// Notifier is the slice of the provider the router needs for replies.
type Notifier interface {
	NotifyMember(ctx context.Context, user ref.UserID, content string) error
}

// Router dispatches command events.
type Router struct {
	controller *lifecycle.Controller
	guilds     *guild.Store
	notifier   Notifier
	logger     *slog.Logger
}

// Config holds the router's collaborators. All except Logger are
// required.
type Config struct {
	Controller *lifecycle.Controller
	Guilds     *guild.Store
	Notifier   Notifier
	Logger     *slog.Logger
}

func New(cfg Config) (*Router, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("command: Controller is required")
	}
	if cfg.Guilds == nil {
		return nil, fmt.Errorf("command: Guilds is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("command: Notifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		controller: cfg.Controller,
		guilds:     cfg.Guilds,
		notifier:   cfg.Notifier,
		logger:     logger,
	}, nil
}

// HandleCommand executes one command event and replies to the actor.
// The returned error is for the dispatch loop's log; the actor always
// gets a reply, success or failure.
func (r *Router) HandleCommand(ctx context.Context, event *provider.CommandEvent) error {
	reply, err := r.dispatch(ctx, event)
	if err != nil {
		reply = userFacing(err)
	}
	if reply != "" {
		if notifyErr := r.notifier.NotifyMember(ctx, event.Actor, reply); notifyErr != nil {
			r.logger.Debug("command reply failed",
				"actor_id", event.Actor, "error", notifyErr)
		}
	}
	if err != nil {
		r.logger.Info("command failed",
			"command", event.Name,
			"actor_id", event.Actor,
			"guild_id", event.Guild,
			"error", err,
		)
	}
	return err
}

// userFacing renders an error for the actor. Validation and
// authorization failures carry their own wording; everything else
// collapses to a generic apology so internals stay internal.
func userFacing(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrValidation),
		errors.Is(err, lifecycle.ErrNotOwner),
		errors.Is(err, errUsage),
		errors.Is(err, errAdminOnly):
		return err.Error()
	default:
		return "Something went wrong running that command. Try again in a moment."
	}
}

var (
	errUsage     = errors.New("usage")
	errAdminOnly = errors.New("that command requires guild admin")
)

func (r *Router) dispatch(ctx context.Context, event *provider.CommandEvent) (string, error) {
	guildID, actor, args := event.Guild, event.Actor, event.Args

	switch event.Name {
	// Owner and delegate commands.
	case "rename":
		if len(args) == 0 {
			return "", fmt.Errorf("%w: rename <name>", errUsage)
		}
		name := strings.Join(args, " ")
		if err := r.controller.Rename(ctx, guildID, actor, name); err != nil {
			return "", err
		}
		return fmt.Sprintf("Channel renamed to %q.", strings.TrimSpace(name)), nil

	case "limit":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: limit <0-99>", errUsage)
		}
		capacity, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: limit <0-99>", errUsage)
		}
		if err := r.controller.SetCapacity(ctx, guildID, actor, capacity); err != nil {
			return "", err
		}
		if capacity == 0 {
			return "Member limit removed.", nil
		}
		return fmt.Sprintf("Member limit set to %d.", capacity), nil

	case "invite":
		user, err := oneUser(args, "invite <user>")
		if err != nil {
			return "", err
		}
		if err := r.controller.Invite(ctx, guildID, actor, user); err != nil {
			return "", err
		}
		return "Invitation granted.", nil

	case "kick":
		user, err := oneUser(args, "kick <user>")
		if err != nil {
			return "", err
		}
		if err := r.controller.Kick(ctx, guildID, actor, user); err != nil {
			return "", err
		}
		return "Member kicked and blocked from rejoining.", nil

	case "lock":
		if err := r.controller.Lock(ctx, guildID, actor); err != nil {
			return "", err
		}
		return "Channel locked.", nil

	case "unlock":
		if err := r.controller.Unlock(ctx, guildID, actor); err != nil {
			return "", err
		}
		return "Channel unlocked.", nil

	case "show":
		if err := r.controller.SetVisible(ctx, guildID, actor); err != nil {
			return "", err
		}
		return "Channel is now visible.", nil

	case "hide":
		if err := r.controller.SetInvisible(ctx, guildID, actor); err != nil {
			return "", err
		}
		return "Channel is now hidden.", nil

	case "delegate":
		user, err := oneUser(args, "delegate <user>")
		if err != nil {
			return "", err
		}
		if err := r.controller.AddDelegate(ctx, guildID, actor, user); err != nil {
			return "", err
		}
		return "Delegate added.", nil

	case "undelegate":
		user, err := oneUser(args, "undelegate <user>")
		if err != nil {
			return "", err
		}
		if err := r.controller.RemoveDelegate(ctx, guildID, actor, user); err != nil {
			return "", err
		}
		return "Delegate removed.", nil

	case "delete":
		if err := r.controller.Delete(ctx, guildID, actor); err != nil {
			return "", err
		}
		return "Channel deleted. Your settings are kept for next time.", nil

	// Admin commands.
	case "set-trigger":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		if len(args) != 1 {
			return "", fmt.Errorf("%w: set-trigger <channel-id>", errUsage)
		}
		channel, err := ref.ParseChannelID(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUsage, err)
		}
		if err := r.guilds.SetTrigger(ctx, guildID, channel); err != nil {
			return "", err
		}
		return fmt.Sprintf("Trigger channel set to %s.", channel), nil

	case "set-category":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		if len(args) != 1 {
			return "", fmt.Errorf("%w: set-category <category-id>", errUsage)
		}
		category, err := ref.ParseCategoryID(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUsage, err)
		}
		if err := r.guilds.SetDefaultCategory(ctx, guildID, category); err != nil {
			return "", err
		}
		return fmt.Sprintf("Default category set to %s.", category), nil

	case "set-creation-category":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		if len(args) != 1 {
			return "", fmt.Errorf("%w: set-creation-category <category-id>", errUsage)
		}
		category, err := ref.ParseCategoryID(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUsage, err)
		}
		if err := r.guilds.SetCreationCategory(ctx, guildID, category); err != nil {
			return "", err
		}
		return fmt.Sprintf("Creation category set to %s.", category), nil

	case "allow":
		return r.policyMutation(ctx, event, "allow <user:id|role:id> [duration]", r.guilds.GrantAllow)

	case "deny":
		return r.policyMutation(ctx, event, "deny <user:id|role:id> [duration]", r.guilds.AddDeny)

	case "unallow":
		return r.policyRemoval(ctx, event, "unallow <user:id|role:id>", r.guilds.RevokeAllow)

	case "undeny":
		return r.policyRemoval(ctx, event, "undeny <user:id|role:id>", r.guilds.RemoveDeny)

	case "policy":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		policy, err := r.guilds.ListPolicy(ctx, guildID)
		if err != nil {
			return "", err
		}
		return renderPolicy(policy), nil

	case "reset-open":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		if err := r.guilds.ResetAllowAll(ctx, guildID); err != nil {
			return "", err
		}
		return "Policy reset: everyone may create channels.", nil

	case "reset-closed":
		if err := requireAdmin(event); err != nil {
			return "", err
		}
		if err := r.guilds.ResetDenyAll(ctx, guildID); err != nil {
			return "", err
		}
		return "Policy reset: nobody may create channels.", nil

	default:
		return "", fmt.Errorf("%w: unknown command %q", errUsage, event.Name)
	}
}

func requireAdmin(event *provider.CommandEvent) error {
	if !event.IsAdmin {
		return errAdminOnly
	}
	return nil
}

// oneUser parses a single user-ID argument.
func oneUser(args []string, usage string) (ref.UserID, error) {
	if len(args) != 1 {
		return ref.UserID{}, fmt.Errorf("%w: %s", errUsage, usage)
	}
	user, err := ref.ParseUserID(args[0])
	if err != nil {
		return ref.UserID{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	return user, nil
}

// policyMutation handles allow/deny: a subject plus an optional
// duration like "90m" or "24h". No duration means permanent.
func (r *Router) policyMutation(ctx context.Context, event *provider.CommandEvent, usage string, apply func(context.Context, ref.GuildID, ref.Subject, time.Duration) error) (string, error) {
	if err := requireAdmin(event); err != nil {
		return "", err
	}
	if len(event.Args) < 1 || len(event.Args) > 2 {
		return "", fmt.Errorf("%w: %s", errUsage, usage)
	}
	subject, err := ref.ParseSubject(event.Args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	var duration time.Duration
	if len(event.Args) == 2 {
		duration, err = time.ParseDuration(event.Args[1])
		if err != nil || duration <= 0 {
			return "", fmt.Errorf("%w: %s", errUsage, usage)
		}
	}
	if err := apply(ctx, event.Guild, subject, duration); err != nil {
		return "", err
	}
	if duration > 0 {
		return fmt.Sprintf("Policy updated for %s (expires in %s).", subject, duration), nil
	}
	return fmt.Sprintf("Policy updated for %s.", subject), nil
}

func (r *Router) policyRemoval(ctx context.Context, event *provider.CommandEvent, usage string, apply func(context.Context, ref.GuildID, ref.Subject) error) (string, error) {
	if err := requireAdmin(event); err != nil {
		return "", err
	}
	if len(event.Args) != 1 {
		return "", fmt.Errorf("%w: %s", errUsage, usage)
	}
	subject, err := ref.ParseSubject(event.Args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := apply(ctx, event.Guild, subject); err != nil {
		return "", err
	}
	return fmt.Sprintf("Policy entry removed for %s.", subject), nil
}

func renderPolicy(policy guild.Policy) string {
	if len(policy.Allow) == 0 && len(policy.Deny) == 0 {
		return "Policy is open: no allow or deny entries."
	}
	var b strings.Builder
	render := func(label string, entries []guild.Entry) {
		if len(entries) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n")
		for _, entry := range entries {
			b.WriteString("  ")
			b.WriteString(entry.Subject.String())
			if !entry.Expiry.IsZero() {
				b.WriteString(" (until ")
				b.WriteString(entry.Expiry.UTC().Format(time.RFC3339))
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	render("Allowed", policy.Allow)
	render("Denied", policy.Deny)
	return strings.TrimRight(b.String(), "\n")
}
