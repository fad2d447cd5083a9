// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// maxPollRetries is the number of consecutive gateway poll failures
// allowed before Next returns an error.
const maxPollRetries = 5

// longPollTimeout is the server-side hold time in milliseconds for a
// normal poll. The gateway holds the connection until events arrive,
// then returns immediately.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// poll error, short so the retry completes quickly.
const retryTimeout = 1000

// Watcher consumes the platform gateway's long-poll event stream and
// yields typed movement and command events in arrival order.
//
// Watcher is not safe for concurrent use. The dispatch loop owns it:
// one goroutine calls Next repeatedly and fans events out per guild.
type Watcher struct {
	provider *RESTProvider
	position string // gateway stream token; empty for initial poll
	pending  []GatewayEvent
}

// NewWatcher creates a Watcher over the provider's gateway stream,
// starting from the current stream position.
func NewWatcher(provider *RESTProvider) *Watcher {
	return &Watcher{provider: provider}
}

// pollResponse is the gateway's long-poll response envelope.
type pollResponse struct {
	Next   string         `json:"next"`
	Events []GatewayEvent `json:"events"`
}

// Next blocks until the gateway delivers an event, then returns it.
// Events arriving in the same poll batch are buffered and returned by
// subsequent calls without further polling. Transient poll errors are
// retried up to maxPollRetries with a short server-side timeout; the
// HTTP round-trip itself provides backoff.
func (w *Watcher) Next(ctx context.Context) (GatewayEvent, error) {
	if len(w.pending) > 0 {
		event := w.pending[0]
		w.pending = w.pending[1:]
		return event, nil
	}

	var pollRetries int
	for {
		pollTimeout := longPollTimeout
		if pollRetries > 0 {
			pollTimeout = retryTimeout
		}

		query := url.Values{}
		query.Set("timeout", strconv.Itoa(pollTimeout))
		if w.position != "" {
			query.Set("since", w.position)
		}

		body, err := w.provider.doRequest(ctx, http.MethodGet, "/gateway/events?"+query.Encode(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return GatewayEvent{}, fmt.Errorf("context cancelled waiting for gateway events: %w", ctx.Err())
			}
			pollRetries++
			// Connection-level errors often indicate a poisoned pooled
			// connection. Drop idle connections so the next attempt
			// opens a fresh socket.
			w.provider.CloseIdleConnections()
			if pollRetries > maxPollRetries {
				return GatewayEvent{}, fmt.Errorf("gateway poll failed %d consecutive times: %w", pollRetries, err)
			}
			w.provider.logger.Debug("gateway poll error, retrying",
				"attempt", pollRetries,
				"max_attempts", maxPollRetries,
				"error", err,
			)
			continue
		}
		pollRetries = 0

		var response pollResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return GatewayEvent{}, fmt.Errorf("provider: parsing gateway poll response: %w", err)
		}
		w.position = response.Next

		if len(response.Events) == 0 {
			continue
		}

		w.pending = response.Events[1:]
		return response.Events[0], nil
	}
}

// Position returns the current gateway stream token.
func (w *Watcher) Position() string {
	return w.position
}
