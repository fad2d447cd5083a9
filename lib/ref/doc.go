// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed identity references for the chat
// platform entities Parlor works with: guilds, users, roles, channels,
// categories, messages, and threads.
//
// The platform identifies everything by numeric snowflake strings. Raw
// strings invite confusion: a user ID assigned to a channel ID field
// compiles fine and fails at runtime. Each identity here is a distinct
// value type with validation at the parse boundary, so a ref value that
// exists is known to be well-formed.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they round-trip through JSON and CBOR as plain strings while keeping
// their type identity in Go code.
package ref
