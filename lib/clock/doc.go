// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that code
// with time-driven behavior stays deterministic under test.
//
// Parlor's correctness-bearing time logic is the deferred-teardown
// timer on empty channels and the expiry comparison on access-policy
// entries. Both go through a Clock instead of calling the time package
// directly: production code injects Real(), tests inject Fake() and
// drive time with Advance.
//
// Wiring pattern: add a Clock field to the struct that needs time and
// accept it in the constructor config.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := lifecycle.New(lifecycle.Config{Clock: c, ...})
//	// trigger an empty-channel event ...
//	c.WaitForTimers(1)             // teardown timer registered
//	c.Advance(5 * time.Minute)     // fires it deterministically
//
// FakeClock timers register as pending waiters. WaitForTimers blocks
// until a given number of waiters exist, which removes the race between
// a goroutine arming a timer and the test advancing the clock.
package clock
