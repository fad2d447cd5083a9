// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/parlorbot/parlor/lib/ref"
)

func testEntry(owner, channel string) Entry {
	return Entry{
		Channel: ref.MustParseChannelID(channel),
		Guild:   ref.MustParseGuildID("100"),
		Owner:   ref.MustParseUserID(owner),
	}
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New()
	entry := testEntry("1", "200")
	if err := reg.Register(entry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	byOwner := reg.FindByOwner(entry.Owner)
	if byOwner == nil || byOwner.Channel != entry.Channel {
		t.Errorf("FindByOwner = %+v, want %+v", byOwner, entry)
	}
	byChannel := reg.FindByChannel(entry.Channel)
	if byChannel == nil || byChannel.Owner != entry.Owner {
		t.Errorf("FindByChannel = %+v, want %+v", byChannel, entry)
	}
	if found := reg.FindByOwner(ref.MustParseUserID("999")); found != nil {
		t.Errorf("FindByOwner on unknown owner = %+v, want nil", found)
	}
}

func TestRegisterDuplicateOwner(t *testing.T) {
	reg := New()
	if err := reg.Register(testEntry("1", "200")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := reg.Register(testEntry("1", "201"))
	if !errors.Is(err, ErrDuplicateOwner) {
		t.Fatalf("second Register = %v, want ErrDuplicateOwner", err)
	}
	// The original entry must survive the rejected registration.
	if entry := reg.FindByOwner(ref.MustParseUserID("1")); entry == nil || entry.Channel.String() != "200" {
		t.Errorf("entry after duplicate register = %+v, want channel 200", entry)
	}
}

func TestSetDelegates(t *testing.T) {
	reg := New()
	entry := testEntry("1", "200")
	entry.Delegates = []ref.UserID{ref.MustParseUserID("2")}
	if err := reg.Register(entry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	updated := []ref.UserID{ref.MustParseUserID("2"), ref.MustParseUserID("3")}
	if !reg.SetDelegates(entry.Channel, updated) {
		t.Fatal("SetDelegates reported the channel unknown")
	}
	found := reg.FindByChannel(entry.Channel)
	if len(found.Delegates) != 2 || found.Delegates[1].String() != "3" {
		t.Errorf("Delegates = %v, want [2 3]", found.Delegates)
	}

	// Lookups hand out detached copies.
	found.Delegates[0] = ref.MustParseUserID("999")
	if again := reg.FindByChannel(entry.Channel); again.Delegates[0].String() != "2" {
		t.Errorf("registry delegates mutated through a lookup copy: %v", again.Delegates)
	}

	if reg.SetDelegates(ref.MustParseChannelID("404"), updated) {
		t.Error("SetDelegates on unknown channel reported success")
	}
}

func TestDeregisterIdempotent(t *testing.T) {
	reg := New()
	entry := testEntry("1", "200")
	if err := reg.Register(entry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	removed := reg.Deregister(entry.Channel)
	if removed == nil || removed.Owner != entry.Owner {
		t.Fatalf("Deregister = %+v, want %+v", removed, entry)
	}
	if again := reg.Deregister(entry.Channel); again != nil {
		t.Errorf("second Deregister = %+v, want nil", again)
	}
	if found := reg.FindByOwner(entry.Owner); found != nil {
		t.Errorf("owner still registered after Deregister: %+v", found)
	}

	// The owner can register a new channel once the old one is gone.
	if err := reg.Register(testEntry("1", "201")); err != nil {
		t.Errorf("re-register after Deregister failed: %v", err)
	}
}

func TestReconcile(t *testing.T) {
	owner := ref.MustParseUserID("1")

	t.Run("no entry", func(t *testing.T) {
		reg := New()
		entry, err := reg.Reconcile(context.Background(), owner, func(context.Context, ref.ChannelID) (bool, error) {
			t.Fatal("probe called without an entry")
			return false, nil
		})
		if err != nil || entry != nil {
			t.Errorf("Reconcile = (%+v, %v), want (nil, nil)", entry, err)
		}
	})

	t.Run("channel alive", func(t *testing.T) {
		reg := New()
		if err := reg.Register(testEntry("1", "200")); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		entry, err := reg.Reconcile(context.Background(), owner, func(context.Context, ref.ChannelID) (bool, error) {
			return true, nil
		})
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if entry == nil || entry.Channel.String() != "200" {
			t.Errorf("Reconcile = %+v, want live entry", entry)
		}
	})

	t.Run("channel gone", func(t *testing.T) {
		reg := New()
		if err := reg.Register(testEntry("1", "200")); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		entry, err := reg.Reconcile(context.Background(), owner, func(context.Context, ref.ChannelID) (bool, error) {
			return false, nil
		})
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if entry != nil {
			t.Errorf("Reconcile returned %+v for a gone channel, want nil", entry)
		}
		if found := reg.FindByOwner(owner); found != nil {
			t.Errorf("stale entry survived Reconcile: %+v", found)
		}
	})

	t.Run("probe error", func(t *testing.T) {
		reg := New()
		if err := reg.Register(testEntry("1", "200")); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		probeErr := errors.New("gateway down")
		_, err := reg.Reconcile(context.Background(), owner, func(context.Context, ref.ChannelID) (bool, error) {
			return false, probeErr
		})
		if !errors.Is(err, probeErr) {
			t.Fatalf("Reconcile = %v, want wrapped probe error", err)
		}
		if found := reg.FindByOwner(owner); found == nil {
			t.Error("entry dropped on probe error")
		}
	})
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	reg := New()
	owner := "1"

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = reg.Register(testEntry(owner, fmt.Sprintf("%d", 200+i)))
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, ErrDuplicateOwner) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d registrations won, want exactly 1", won)
	}
	if entries := reg.Entries(); len(entries) != 1 {
		t.Errorf("len(Entries) = %d, want 1", len(entries))
	}
}
