// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parlor's standard CBOR serialization.
//
// The stores keep structured collections (invite and kick sets,
// delegate lists, policy entries) as single blob columns in SQLite.
// CBOR with Core Deterministic Encoding serializes them: the same
// logical value always produces identical bytes, which keeps
// re-derivation of an unchanged template a byte-level no-op and makes
// stored documents comparable.
package codec
