// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations Parlor uses. Production code
// injects Real(); tests inject Fake() for deterministic time control.
//
// Any function that would call time.Now or time.AfterFunc takes a
// Clock (or is a method on a struct carrying one) instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real clock) or synchronously during Advance (fake
	// clock). The returned Timer cancels the pending call via Stop.
	// If d <= 0, f runs immediately.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled AfterFunc call. Stop prevents it from firing if
// it has not fired yet.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns true if the call
// stopped the timer, false if it had already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
