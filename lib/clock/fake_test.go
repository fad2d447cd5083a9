// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(testEpoch)
	if !c.Now().Equal(testEpoch) {
		t.Errorf("Now() = %v, want %v", c.Now(), testEpoch)
	}
	c.Advance(time.Hour)
	if !c.Now().Equal(testEpoch.Add(time.Hour)) {
		t.Errorf("Now() after Advance = %v, want %v", c.Now(), testEpoch.Add(time.Hour))
	}
}

func TestAfterFuncFiresAtDeadline(t *testing.T) {
	c := Fake(testEpoch)
	var firedAt time.Time
	c.AfterFunc(5*time.Minute, func() { firedAt = c.Now() })

	c.Advance(4 * time.Minute)
	if !firedAt.IsZero() {
		t.Fatal("callback fired before its deadline")
	}

	c.Advance(time.Minute)
	if !firedAt.Equal(testEpoch.Add(5 * time.Minute)) {
		t.Errorf("fire time = %v, want %v", firedAt, testEpoch.Add(5*time.Minute))
	}
}

func TestAfterFuncRunsInDeadlineOrder(t *testing.T) {
	c := Fake(testEpoch)
	var order []int
	c.AfterFunc(2*time.Minute, func() { order = append(order, 2) })
	c.AfterFunc(1*time.Minute, func() { order = append(order, 1) })
	c.AfterFunc(3*time.Minute, func() { order = append(order, 3) })

	c.Advance(3 * time.Minute)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callbacks ran in order %v, want [1 2 3]", order)
	}
}

func TestAfterFuncStop(t *testing.T) {
	c := Fake(testEpoch)
	fired := false
	timer := c.AfterFunc(time.Minute, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop on a pending timer returned false")
	}
	c.Advance(time.Hour)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestAfterFuncImmediateWhenNonPositive(t *testing.T) {
	c := Fake(testEpoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("zero-duration AfterFunc did not run synchronously")
	}
}

func TestAfterFuncChainedDuringAdvance(t *testing.T) {
	// A callback that arms another timer inside the same Advance
	// window fires within that Advance.
	c := Fake(testEpoch)
	var secondFired bool
	c.AfterFunc(time.Minute, func() {
		c.AfterFunc(time.Minute, func() { secondFired = true })
	})
	c.Advance(2 * time.Minute)
	if !secondFired {
		t.Error("timer armed during Advance did not fire within the same window")
	}
}

func TestWaitForTimers(t *testing.T) {
	c := Fake(testEpoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Minute, func() {})
		close(done)
	}()

	c.WaitForTimers(1)
	<-done
	if c.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", c.PendingCount())
	}
}
