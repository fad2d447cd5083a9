// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by Parlor's tests:
// channel receive/send with timeout safety valves, so individual tests
// never hand-roll select-with-time.After blocks.
package testutil
