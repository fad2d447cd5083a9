// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parlorbot/parlor/lib/clock"
	"github.com/parlorbot/parlor/lib/codec"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/lib/sqlitepool"
	"github.com/parlorbot/parlor/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	owner      TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	capacity   INTEGER NOT NULL,
	visible    INTEGER NOT NULL,
	locked     INTEGER NOT NULL,
	invited    BLOB,
	kicked     BLOB,
	delegates  BLOB,
	updated_at INTEGER NOT NULL
);
`

// Store persists templates in SQLite, one row per owner. Rows are only
// ever replaced through DeriveAndSave; nothing deletes them, so an
// owner's configuration survives channel teardown and process
// restarts.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a template store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" works for tests
	// with PoolSize 1.
	Path string

	// PoolSize defaults to 4 if zero or negative.
	PoolSize int

	// Clock provides the updated_at timestamp. Required.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// OpenStore opens the template database, creating the schema if
// needed.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("template store: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("template store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Get returns the owner's saved template, or nil when the owner has
// never had a channel snapshotted.
func (s *Store) Get(ctx context.Context, owner ref.UserID) (*Template, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("template store: get: %w", err)
	}
	defer s.pool.Put(conn)

	var result *Template
	err = sqlitex.Execute(conn,
		`SELECT name, capacity, visible, locked, invited, kicked, delegates
		 FROM templates WHERE owner = ?`,
		&sqlitex.ExecOptions{
			Args: []any{owner.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				loaded := &Template{
					Owner:    owner,
					Name:     stmt.ColumnText(0),
					Capacity: int(stmt.ColumnInt64(1)),
					Visible:  stmt.ColumnInt64(2) != 0,
					Locked:   stmt.ColumnInt64(3) != 0,
				}
				if err := readUserList(stmt, 4, &loaded.Invited); err != nil {
					return fmt.Errorf("invited: %w", err)
				}
				if err := readUserList(stmt, 5, &loaded.Kicked); err != nil {
					return fmt.Errorf("kicked: %w", err)
				}
				if err := readUserList(stmt, 6, &loaded.Delegates); err != nil {
					return fmt.Errorf("delegates: %w", err)
				}
				result = loaded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("template store: get %s: %w", owner, err)
	}
	return result, nil
}

// DeriveAndSave snapshots a live channel into the owner's template and
// persists it, replacing any previous row. This is the store's single
// write path. Saving the same snapshot twice leaves the stored
// template unchanged.
func (s *Store) DeriveAndSave(ctx context.Context, owner ref.UserID, channel *provider.Channel, delegates []ref.UserID) (*Template, error) {
	derived, err := Derive(owner, channel, delegates)
	if err != nil {
		return nil, err
	}

	invitedBlob, err := userListBlob(derived.Invited)
	if err != nil {
		return nil, fmt.Errorf("template store: marshal invited: %w", err)
	}
	kickedBlob, err := userListBlob(derived.Kicked)
	if err != nil {
		return nil, fmt.Errorf("template store: marshal kicked: %w", err)
	}
	delegatesBlob, err := userListBlob(derived.Delegates)
	if err != nil {
		return nil, fmt.Errorf("template store: marshal delegates: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("template store: save: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO templates
		 (owner, name, capacity, visible, locked, invited, kicked, delegates, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner) DO UPDATE SET
		   name = excluded.name,
		   capacity = excluded.capacity,
		   visible = excluded.visible,
		   locked = excluded.locked,
		   invited = excluded.invited,
		   kicked = excluded.kicked,
		   delegates = excluded.delegates,
		   updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				owner.String(),
				derived.Name,
				derived.Capacity,
				boolInt(derived.Visible),
				boolInt(derived.Locked),
				invitedBlob,
				kickedBlob,
				delegatesBlob,
				s.clock.Now().UnixMilli(),
			},
		})
	if err != nil {
		return nil, fmt.Errorf("template store: save %s: %w", owner, err)
	}

	s.logger.Debug("template saved",
		"owner", owner,
		"name", derived.Name,
		"capacity", derived.Capacity,
		"invited", len(derived.Invited),
		"kicked", len(derived.Kicked),
		"delegates", len(derived.Delegates),
	)
	return derived, nil
}

// userListBlob encodes a user list as a deterministic CBOR blob, nil
// for an empty list so the column stays NULL.
func userListBlob(users []ref.UserID) (any, error) {
	if len(users) == 0 {
		return nil, nil
	}
	data, err := codec.Marshal(users)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func readUserList(stmt *sqlite.Stmt, col int, out *[]ref.UserID) error {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	blob := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, blob)
	return codec.Unmarshal(blob, out)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
