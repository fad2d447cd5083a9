// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the Parlor bot.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// API configures the chat platform connection.
	API APIConfig `yaml:"api"`

	// Storage configures the persistent document stores.
	Storage StorageConfig `yaml:"storage"`

	// Channels configures provisioning behavior.
	Channels ChannelsConfig `yaml:"channels"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per environment.
type Overrides struct {
	API      *APIConfig      `yaml:"api,omitempty"`
	Storage  *StorageConfig  `yaml:"storage,omitempty"`
	Channels *ChannelsConfig `yaml:"channels,omitempty"`
}

// APIConfig configures the chat platform connection.
type APIConfig struct {
	// BaseURL is the platform's REST API base URL.
	BaseURL string `yaml:"base_url"`

	// TokenFile is the path to a file containing the bot token. The
	// token itself never appears in the config file.
	TokenFile string `yaml:"token_file"`

	// RequestsPerSecond caps the REST request rate. Zero means the
	// built-in default (45, just under the platform's global limit).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// StorageConfig configures the document stores.
type StorageConfig struct {
	// TemplatesPath is the SQLite file for per-owner channel templates.
	TemplatesPath string `yaml:"templates_path"`

	// GuildsPath is the SQLite file for guild configuration and access
	// policy.
	GuildsPath string `yaml:"guilds_path"`
}

// ChannelsConfig configures provisioning behavior. Per-guild settings
// stored by an administrator take precedence; these are the process-wide
// fallbacks for guilds never configured.
type ChannelsConfig struct {
	// TriggerChannel is the fallback trigger channel ID.
	TriggerChannel string `yaml:"trigger_channel"`

	// DefaultCategory is the fallback category for created channels.
	DefaultCategory string `yaml:"default_category"`

	// TeardownTimeout is the grace period before an empty channel is
	// deleted. Default: 5m.
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
}

// Default returns the default configuration. These are base values the
// config file merges over, not a substitute for the file itself.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".local", "state", "parlor")

	return &Config{
		Environment: Development,
		API: APIConfig{
			RequestsPerSecond: 45,
		},
		Storage: StorageConfig{
			TemplatesPath: filepath.Join(stateDir, "templates.db"),
			GuildsPath:    filepath.Join(stateDir, "guilds.db"),
		},
		Channels: ChannelsConfig{
			TeardownTimeout: 5 * time.Minute,
		},
	}
}

// Load loads configuration from the PARLOR_CONFIG environment variable.
// Fails if the variable is not set; there is no discovery fallback.
func Load() (*Config, error) {
	path := os.Getenv("PARLOR_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("PARLOR_CONFIG environment variable not set; " +
			"set it to the path of your parlor.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override values in it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides merges the section matching the configured
// environment over the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}
	if overrides.API != nil {
		c.API = *overrides.API
	}
	if overrides.Storage != nil {
		c.Storage = *overrides.Storage
	}
	if overrides.Channels != nil {
		c.Channels = *overrides.Channels
	}
}

// validate checks the fields every deployment needs.
func (c *Config) validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.TokenFile == "" {
		return fmt.Errorf("api.token_file is required")
	}
	if c.Channels.TeardownTimeout <= 0 {
		return fmt.Errorf("channels.teardown_timeout must be positive")
	}
	return nil
}

// ReadToken reads the bot token from the configured token file,
// trimming trailing whitespace.
func (c *Config) ReadToken() (string, error) {
	data, err := os.ReadFile(c.API.TokenFile)
	if err != nil {
		return "", fmt.Errorf("config: reading token file: %w", err)
	}
	token := string(data)
	for len(token) > 0 && (token[len(token)-1] == '\n' || token[len(token)-1] == '\r' || token[len(token)-1] == ' ') {
		token = token[:len(token)-1]
	}
	if token == "" {
		return "", fmt.Errorf("config: token file %s is empty", c.API.TokenFile)
	}
	return token, nil
}
