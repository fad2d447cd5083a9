// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Parlor bot.
//
// Configuration is loaded from a single YAML file specified by:
//   - the PARLOR_CONFIG environment variable, or
//   - the --config flag passed to the binary.
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
package config
