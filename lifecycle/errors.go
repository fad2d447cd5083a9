// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import "errors"

// Sentinel errors for the controller's failure classes. Provider
// failures are not wrapped in a sentinel: they surface as the
// underlying error, extractable with errors.As into
// *provider.APIError.
var (
	// ErrPolicyDenied means the guild's access policy blocked a
	// trigger. The member has already been notified (best effort).
	ErrPolicyDenied = errors.New("lifecycle: access policy denied channel creation")

	// ErrNotOwner means the actor is neither the owner nor a delegate
	// of any live channel.
	ErrNotOwner = errors.New("lifecycle: actor does not manage a live channel")

	// ErrValidation means a command argument was rejected locally
	// before any provider call.
	ErrValidation = errors.New("lifecycle: invalid argument")
)
