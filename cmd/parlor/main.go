// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Command parlor runs the ephemeral voice-channel bot: it consumes
// gateway movement and command events and drives channel provisioning,
// teardown, and management.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parlorbot/parlor/command"
	"github.com/parlorbot/parlor/guild"
	"github.com/parlorbot/parlor/lib/clock"
	"github.com/parlorbot/parlor/lib/config"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/lifecycle"
	"github.com/parlorbot/parlor/provider"
	"github.com/parlorbot/parlor/registry"
	"github.com/parlorbot/parlor/template"
)

// version is stamped by the release build.
var version = "devel"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parlor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to parlor.yaml (overrides PARLOR_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("parlor %s\n", version)
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if cfg.Environment == config.Production {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	token, err := cfg.ReadToken()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restProvider, err := provider.NewRESTProvider(provider.RESTConfig{
		BaseURL:           cfg.API.BaseURL,
		Token:             token,
		Logger:            logger,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	realClock := clock.Real()

	templates, err := template.OpenStore(template.StoreConfig{
		Path:   cfg.Storage.TemplatesPath,
		Clock:  realClock,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer templates.Close()

	defaults, err := processDefaults(cfg)
	if err != nil {
		return err
	}
	guilds, err := guild.OpenStore(guild.StoreConfig{
		Path:     cfg.Storage.GuildsPath,
		Clock:    realClock,
		Logger:   logger,
		Defaults: defaults,
	})
	if err != nil {
		return err
	}
	defer guilds.Close()

	controller, err := lifecycle.New(lifecycle.Config{
		Provider:        restProvider,
		Registry:        registry.New(),
		Templates:       templates,
		Guilds:          guilds,
		Clock:           realClock,
		Logger:          logger,
		TeardownTimeout: cfg.Channels.TeardownTimeout,
	})
	if err != nil {
		return err
	}

	router, err := command.New(command.Config{
		Controller: controller,
		Guilds:     guilds,
		Notifier:   restProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("parlor starting",
		"version", version,
		"environment", cfg.Environment,
		"base_url", cfg.API.BaseURL,
		"teardown_timeout", cfg.Channels.TeardownTimeout,
	)

	dispatcher := newDispatcher(controller, router, logger)
	watcher := provider.NewWatcher(restProvider)

	for {
		event, err := watcher.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			dispatcher.close()
			return fmt.Errorf("gateway stream failed: %w", err)
		}
		dispatcher.dispatch(ctx, event)
	}

	logger.Info("shutting down")
	dispatcher.close()
	return nil
}

// processDefaults converts the config file's fallback trigger and
// category into typed identities. Both are optional: a deployment can
// rely entirely on per-guild admin configuration.
func processDefaults(cfg *config.Config) (guild.Defaults, error) {
	var defaults guild.Defaults
	if raw := cfg.Channels.TriggerChannel; raw != "" {
		channel, err := ref.ParseChannelID(raw)
		if err != nil {
			return guild.Defaults{}, fmt.Errorf("channels.trigger_channel: %w", err)
		}
		defaults.TriggerChannel = channel
	}
	if raw := cfg.Channels.DefaultCategory; raw != "" {
		category, err := ref.ParseCategoryID(raw)
		if err != nil {
			return guild.Defaults{}, fmt.Errorf("channels.default_category: %w", err)
		}
		defaults.Category = category
	}
	return defaults, nil
}
