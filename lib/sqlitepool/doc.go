// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite's connection pool
// with Parlor's standard pragmas and logging.
//
// Both document stores (templates and guild policy) open their own
// pool. Connections run in WAL mode with a busy timeout, so concurrent
// command handling across guilds never fails on a transient lock.
// Callers Take a connection, use it, and Put it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
