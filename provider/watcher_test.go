// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/parlorbot/parlor/lib/ref"
)

func TestWatcherDeliversEventsInOrder(t *testing.T) {
	var polls atomic.Int64
	restProvider := newTestProvider(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/gateway/events" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		switch polls.Add(1) {
		case 1:
			if since := request.URL.Query().Get("since"); since != "" {
				t.Errorf("initial poll carried since=%q", since)
			}
			writeJSON(writer, pollResponse{
				Next: "token-1",
				Events: []GatewayEvent{
					{Type: EventMovement, Movement: &MovementEvent{User: ref.MustParseUserID("1")}},
					{Type: EventMovement, Movement: &MovementEvent{User: ref.MustParseUserID("2")}},
				},
			})
		default:
			if since := request.URL.Query().Get("since"); since != "token-1" {
				t.Errorf("since = %q, want token-1", since)
			}
			writeJSON(writer, pollResponse{
				Next: "token-2",
				Events: []GatewayEvent{
					{Type: EventCommand, Command: &CommandEvent{Name: "lock"}},
				},
			})
		}
	}))

	watcher := NewWatcher(restProvider)
	ctx := context.Background()

	// First poll returns a two-event batch. The second event must be
	// buffered and returned without another HTTP round-trip.
	first, err := watcher.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.Movement == nil || first.Movement.User.String() != "1" {
		t.Errorf("unexpected first event: %+v", first)
	}

	second, err := watcher.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if second.Movement == nil || second.Movement.User.String() != "2" {
		t.Errorf("unexpected second event: %+v", second)
	}
	if got := polls.Load(); got != 1 {
		t.Errorf("polls after buffered event = %d, want 1", got)
	}

	third, err := watcher.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if third.Command == nil || third.Command.Name != "lock" {
		t.Errorf("unexpected third event: %+v", third)
	}
	if watcher.Position() != "token-2" {
		t.Errorf("position = %q, want token-2", watcher.Position())
	}
}

func TestWatcherSkipsEmptyPolls(t *testing.T) {
	var polls atomic.Int64
	restProvider := newTestProvider(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if polls.Add(1) < 3 {
			writeJSON(writer, pollResponse{Next: "idle"})
			return
		}
		writeJSON(writer, pollResponse{
			Next:   "busy",
			Events: []GatewayEvent{{Type: EventCommand, Command: &CommandEvent{Name: "rename"}}},
		})
	}))

	watcher := NewWatcher(restProvider)
	event, err := watcher.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if event.Command == nil || event.Command.Name != "rename" {
		t.Errorf("unexpected event: %+v", event)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestWatcherRetriesThenFails(t *testing.T) {
	var polls atomic.Int64
	restProvider := newTestProvider(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		polls.Add(1)
		writer.WriteHeader(http.StatusBadGateway)
		writeJSON(writer, APIError{Code: 0, Message: "upstream unavailable"})
	}))

	watcher := NewWatcher(restProvider)
	_, err := watcher.Next(context.Background())
	if err == nil {
		t.Fatal("Next succeeded against a failing gateway")
	}
	// Initial attempt plus maxPollRetries retries.
	if got := polls.Load(); got != maxPollRetries+1 {
		t.Errorf("polls = %d, want %d", got, maxPollRetries+1)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	restProvider := newTestProvider(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	watcher := NewWatcher(restProvider)
	_, err := watcher.Next(ctx)
	if err == nil {
		t.Fatal("Next succeeded with a cancelled context")
	}
	if context.Cause(ctx) == nil {
		t.Error("context not cancelled")
	}
}
