// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider is Parlor's boundary with the hosting chat platform.
//
// The lifecycle controller consumes the narrow Provider interface:
// channel create/edit/delete, member movement, occupancy sampling,
// messages, companion threads, and private notices. Two implementations
// exist:
//
//   - *RESTProvider: the production client, speaking the platform's
//     REST API over net/http with a client-side rate limiter.
//   - test fakes in the packages that consume Provider.
//
// The Watcher turns the platform's long-poll gateway into typed
// movement and command events for the dispatch loop.
//
// Permission overwrites are modeled as (subject, view, connect) entries
// with tri-state flags. The overwrite set on a live channel is the
// authoritative statement of who may see and join it; templates are
// derived from it, never the other way around.
package provider
