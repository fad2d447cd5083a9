// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package guild

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/parlorbot/parlor/lib/clock"
	"github.com/parlorbot/parlor/lib/ref"
)

var testGuild = ref.MustParseGuildID("100")

func newTestStore(t *testing.T, fakeClock *clock.FakeClock) *Store {
	t.Helper()
	store, err := OpenStore(StoreConfig{
		Path:  filepath.Join(t.TempDir(), "guilds.db"),
		Clock: fakeClock,
		Defaults: Defaults{
			TriggerChannel: ref.MustParseChannelID("1000"),
			Category:       ref.MustParseCategoryID("2000"),
		},
	})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUnconfiguredGuildFallsBackToDefaults(t *testing.T) {
	store := newTestStore(t, clock.Fake(time.Unix(1700000000, 0)))

	config, err := store.GetConfig(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Trigger.String() != "1000" {
		t.Errorf("Trigger = %s, want default 1000", config.Trigger)
	}
	if config.DefaultCategory.String() != "2000" {
		t.Errorf("DefaultCategory = %s, want default 2000", config.DefaultCategory)
	}
	if config.CreationCategory.String() != "2000" {
		t.Errorf("CreationCategory = %s, want fallback to default category", config.CreationCategory)
	}
}

func TestConfigOverridesAndCreationFallback(t *testing.T) {
	store := newTestStore(t, clock.Fake(time.Unix(1700000000, 0)))
	ctx := context.Background()

	if err := store.SetTrigger(ctx, testGuild, ref.MustParseChannelID("1001")); err != nil {
		t.Fatalf("SetTrigger failed: %v", err)
	}
	if err := store.SetDefaultCategory(ctx, testGuild, ref.MustParseCategoryID("2001")); err != nil {
		t.Fatalf("SetDefaultCategory failed: %v", err)
	}

	config, err := store.GetConfig(ctx, testGuild)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Trigger.String() != "1001" {
		t.Errorf("Trigger = %s, want 1001", config.Trigger)
	}
	// Creation category unset: falls back to the guild's own default
	// category, not the process default.
	if config.CreationCategory.String() != "2001" {
		t.Errorf("CreationCategory = %s, want 2001", config.CreationCategory)
	}

	if err := store.SetCreationCategory(ctx, testGuild, ref.MustParseCategoryID("2002")); err != nil {
		t.Fatalf("SetCreationCategory failed: %v", err)
	}
	config, err = store.GetConfig(ctx, testGuild)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.CreationCategory.String() != "2002" {
		t.Errorf("CreationCategory = %s, want explicit 2002", config.CreationCategory)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	store := newTestStore(t, clock.Fake(time.Unix(1700000000, 0)))
	ctx := context.Background()
	subject := ref.UserSubject(member)

	if err := store.GrantAllow(ctx, testGuild, subject, 0); err != nil {
		t.Fatalf("GrantAllow failed: %v", err)
	}

	permitted, err := store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("granted member not permitted")
	}

	// A non-empty allow list must exclude unlisted members.
	other := ref.MustParseUserID("2")
	permitted, err = store.IsPermitted(ctx, testGuild, other, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if permitted {
		t.Error("unlisted member permitted with non-empty allow list")
	}

	if err := store.RevokeAllow(ctx, testGuild, subject); err != nil {
		t.Fatalf("RevokeAllow failed: %v", err)
	}
	// Allow list empty again: guild is open.
	permitted, err = store.IsPermitted(ctx, testGuild, other, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("guild not open after allow list emptied")
	}
}

func TestDenyPrecedenceSurvivesGrant(t *testing.T) {
	store := newTestStore(t, clock.Fake(time.Unix(1700000000, 0)))
	ctx := context.Background()
	subject := ref.UserSubject(member)

	if err := store.AddDeny(ctx, testGuild, subject, 0); err != nil {
		t.Fatalf("AddDeny failed: %v", err)
	}
	// Granting a banned subject must not lift the ban.
	if err := store.GrantAllow(ctx, testGuild, subject, 0); err != nil {
		t.Fatalf("GrantAllow failed: %v", err)
	}

	permitted, err := store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if permitted {
		t.Error("banned member permitted after a grant")
	}

	if err := store.RemoveDeny(ctx, testGuild, subject); err != nil {
		t.Fatalf("RemoveDeny failed: %v", err)
	}
	permitted, err = store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("member still blocked after ban lifted")
	}
}

func TestTimedDenyExpires(t *testing.T) {
	fakeClock := clock.Fake(time.Unix(1700000000, 0))
	store := newTestStore(t, fakeClock)
	ctx := context.Background()

	if err := store.AddDeny(ctx, testGuild, ref.UserSubject(member), time.Hour); err != nil {
		t.Fatalf("AddDeny failed: %v", err)
	}

	permitted, err := store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if permitted {
		t.Error("member permitted inside the ban window")
	}

	// One second past the hour: the ban has lapsed and must neither
	// block nor appear in listings, with no explicit prune call.
	fakeClock.Advance(time.Hour + time.Second)

	permitted, err = store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("member still blocked after ban expiry")
	}

	policy, err := store.ListPolicy(ctx, testGuild)
	if err != nil {
		t.Fatalf("ListPolicy failed: %v", err)
	}
	if len(policy.Deny) != 0 {
		t.Errorf("expired entry visible in ListPolicy: %v", policy.Deny)
	}
}

func TestGrantRefreshesExpiry(t *testing.T) {
	fakeClock := clock.Fake(time.Unix(1700000000, 0))
	store := newTestStore(t, fakeClock)
	ctx := context.Background()
	subject := ref.UserSubject(member)

	if err := store.GrantAllow(ctx, testGuild, subject, time.Hour); err != nil {
		t.Fatalf("GrantAllow failed: %v", err)
	}
	fakeClock.Advance(30 * time.Minute)
	// Re-granting replaces the entry rather than stacking a duplicate.
	if err := store.GrantAllow(ctx, testGuild, subject, time.Hour); err != nil {
		t.Fatalf("second GrantAllow failed: %v", err)
	}

	policy, err := store.ListPolicy(ctx, testGuild)
	if err != nil {
		t.Fatalf("ListPolicy failed: %v", err)
	}
	if len(policy.Allow) != 1 {
		t.Fatalf("Allow = %v, want a single refreshed entry", policy.Allow)
	}

	// 45 minutes later the original grant would have lapsed; the
	// refreshed one is still live.
	fakeClock.Advance(45 * time.Minute)
	permitted, err := store.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("refreshed grant not honored")
	}
}

func TestResetDenyAll(t *testing.T) {
	store := newTestStore(t, clock.Fake(time.Unix(1700000000, 0)))
	ctx := context.Background()

	if err := store.GrantAllow(ctx, testGuild, ref.UserSubject(member), 0); err != nil {
		t.Fatalf("GrantAllow failed: %v", err)
	}
	if err := store.ResetDenyAll(ctx, testGuild); err != nil {
		t.Fatalf("ResetDenyAll failed: %v", err)
	}

	// Everyone holds the everyone role implicitly, so every member is
	// blocked, admins included.
	permitted, err := store.IsPermitted(ctx, testGuild, member, []ref.RoleID{testGuild.EveryoneRole()}, true)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if permitted {
		t.Error("member permitted in a closed guild")
	}

	if err := store.ResetAllowAll(ctx, testGuild); err != nil {
		t.Fatalf("ResetAllowAll failed: %v", err)
	}
	permitted, err = store.IsPermitted(ctx, testGuild, member, []ref.RoleID{testGuild.EveryoneRole()}, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if !permitted {
		t.Error("member blocked after ResetAllowAll")
	}
}

func TestPolicySurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "guilds.db")
	fakeClock := clock.Fake(time.Unix(1700000000, 0))
	ctx := context.Background()

	store1, err := OpenStore(StoreConfig{Path: dbPath, Clock: fakeClock})
	if err != nil {
		t.Fatalf("OpenStore (1) failed: %v", err)
	}
	if err := store1.AddDeny(ctx, testGuild, ref.UserSubject(member), 0); err != nil {
		t.Fatalf("AddDeny failed: %v", err)
	}
	if err := store1.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	store2, err := OpenStore(StoreConfig{Path: dbPath, Clock: fakeClock})
	if err != nil {
		t.Fatalf("OpenStore (2) failed: %v", err)
	}
	defer store2.Close()

	permitted, err := store2.IsPermitted(ctx, testGuild, member, nil, false)
	if err != nil {
		t.Fatalf("IsPermitted failed: %v", err)
	}
	if permitted {
		t.Error("ban lost across reopen")
	}
}
