// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package guild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parlorbot/parlor/lib/clock"
	"github.com/parlorbot/parlor/lib/codec"
	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS guilds (
	guild             TEXT PRIMARY KEY,
	trigger_channel   TEXT NOT NULL DEFAULT '',
	default_category  TEXT NOT NULL DEFAULT '',
	creation_category TEXT NOT NULL DEFAULT '',
	allow             BLOB,
	deny              BLOB,
	updated_at        INTEGER NOT NULL
);
`

// Defaults are the process-wide fallbacks for guilds that have never
// been configured, taken from the deployment's config file.
type Defaults struct {
	TriggerChannel ref.ChannelID
	Category       ref.CategoryID
}

// Store persists per-guild configuration and access policy in SQLite,
// one row per guild. A guild's row is created on its first admin
// mutation; reads of unconfigured guilds synthesize a record from the
// process defaults without writing anything.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	logger   *slog.Logger
	defaults Defaults
}

// StoreConfig holds the parameters for opening a guild store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string

	// PoolSize defaults to 4 if zero or negative.
	PoolSize int

	// Clock drives expiry evaluation and updated_at. Required.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger

	// Defaults are the process-wide fallbacks for unconfigured guilds.
	Defaults Defaults
}

// OpenStore opens the guild database, creating the schema if needed.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("guild store: Clock is required")
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
		return nil, fmt.Errorf("guild store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: logger, defaults: cfg.Defaults}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// GetConfig returns the guild's effective configuration with process
// defaults filled in for unset fields.
func (s *Store) GetConfig(ctx context.Context, guildID ref.GuildID) (Config, error) {
	record, err := s.load(ctx, guildID)
	if err != nil {
		return Config{}, err
	}
	return s.effective(record.Config), nil
}

// effective fills unset config fields from process defaults, and the
// creation category from the default category.
func (s *Store) effective(config Config) Config {
	if config.Trigger.IsZero() {
		config.Trigger = s.defaults.TriggerChannel
	}
	if config.DefaultCategory.IsZero() {
		config.DefaultCategory = s.defaults.Category
	}
	if config.CreationCategory.IsZero() {
		config.CreationCategory = config.DefaultCategory
	}
	return config
}

// SetTrigger records the guild's trigger channel.
func (s *Store) SetTrigger(ctx context.Context, guildID ref.GuildID, channel ref.ChannelID) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Config.Trigger = channel
		return nil
	})
}

// SetDefaultCategory records the guild's default category.
func (s *Store) SetDefaultCategory(ctx context.Context, guildID ref.GuildID, category ref.CategoryID) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Config.DefaultCategory = category
		return nil
	})
}

// SetCreationCategory records the category provisioned channels are
// created in.
func (s *Store) SetCreationCategory(ctx context.Context, guildID ref.GuildID, category ref.CategoryID) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Config.CreationCategory = category
		return nil
	})
}

// IsPermitted evaluates the guild's access policy for a member.
// Expired entries are pruned first, so a lapsed ban no longer blocks.
func (s *Store) IsPermitted(ctx context.Context, guildID ref.GuildID, user ref.UserID, roles []ref.RoleID, isAdmin bool) (bool, error) {
	policy, err := s.ListPolicy(ctx, guildID)
	if err != nil {
		return false, err
	}
	return policy.Permits(user, roles, isAdmin), nil
}

// GrantAllow adds subject to the allow list. A zero duration makes the
// grant permanent. A deny entry for the same subject is deliberately
// left in place: bans take precedence until they expire or are lifted.
func (s *Store) GrantAllow(ctx context.Context, guildID ref.GuildID, subject ref.Subject, duration time.Duration) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy.Allow = upsert(record.Policy.Allow, s.entry(subject, duration))
		return nil
	})
}

// RevokeAllow removes subject from the allow list. Removing an absent
// subject is a no-op.
func (s *Store) RevokeAllow(ctx context.Context, guildID ref.GuildID, subject ref.Subject) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy.Allow, _ = remove(record.Policy.Allow, subject)
		return nil
	})
}

// AddDeny adds subject to the deny list. A zero duration makes the ban
// permanent.
func (s *Store) AddDeny(ctx context.Context, guildID ref.GuildID, subject ref.Subject, duration time.Duration) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy.Deny = upsert(record.Policy.Deny, s.entry(subject, duration))
		return nil
	})
}

// RemoveDeny removes subject from the deny list.
func (s *Store) RemoveDeny(ctx context.Context, guildID ref.GuildID, subject ref.Subject) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy.Deny, _ = remove(record.Policy.Deny, subject)
		return nil
	})
}

// ResetAllowAll clears both lists, opening the guild to everyone.
func (s *Store) ResetAllowAll(ctx context.Context, guildID ref.GuildID) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy = Policy{}
		return nil
	})
}

// ResetDenyAll closes the guild: the allow list is cleared and the
// deny list reduced to a single permanent entry for the guild's
// everyone role, so only a later RemoveDeny or reset reopens it.
func (s *Store) ResetDenyAll(ctx context.Context, guildID ref.GuildID) error {
	return s.mutate(ctx, guildID, func(record *Record) error {
		record.Policy = Policy{
			Deny: []Entry{{Subject: ref.RoleSubject(guildID.EveryoneRole())}},
		}
		return nil
	})
}

// ListPolicy returns the guild's live policy entries. Expired entries
// are pruned from storage as a side effect.
func (s *Store) ListPolicy(ctx context.Context, guildID ref.GuildID) (Policy, error) {
	record, err := s.load(ctx, guildID)
	if err != nil {
		return Policy{}, err
	}
	if record.Policy.prune(s.clock.Now()) {
		// Persist the excision so expired entries do not linger in
		// storage. Losing this write is harmless, the next access
		// prunes again.
		if err := s.save(ctx, record); err != nil {
			return Policy{}, err
		}
	}
	return record.Policy, nil
}

func (s *Store) entry(subject ref.Subject, duration time.Duration) Entry {
	entry := Entry{Subject: subject}
	if duration > 0 {
		entry.Expiry = s.clock.Now().Add(duration)
	}
	return entry
}

// mutate loads the guild record, prunes expired policy entries,
// applies fn, and writes the record back in one immediate transaction.
func (s *Store) mutate(ctx context.Context, guildID ref.GuildID, fn func(*Record) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("guild store: mutate: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("guild store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	record, err := loadOnConn(conn, guildID)
	if err != nil {
		return err
	}
	record.Policy.prune(s.clock.Now())
	if err = fn(record); err != nil {
		return err
	}
	if err = saveOnConn(conn, record, s.clock.Now()); err != nil {
		return err
	}
	return nil
}

func (s *Store) load(ctx context.Context, guildID ref.GuildID) (*Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("guild store: load: %w", err)
	}
	defer s.pool.Put(conn)
	return loadOnConn(conn, guildID)
}

func (s *Store) save(ctx context.Context, record *Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("guild store: save: %w", err)
	}
	defer s.pool.Put(conn)
	return saveOnConn(conn, record, s.clock.Now())
}

// loadOnConn reads a guild's record, synthesizing an empty one when
// the guild has never been written.
func loadOnConn(conn *sqlite.Conn, guildID ref.GuildID) (*Record, error) {
	record := &Record{Guild: guildID}
	err := sqlitex.Execute(conn,
		`SELECT trigger_channel, default_category, creation_category, allow, deny
		 FROM guilds WHERE guild = ?`,
		&sqlitex.ExecOptions{
			Args: []any{guildID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if raw := stmt.ColumnText(0); raw != "" {
					channel, err := ref.ParseChannelID(raw)
					if err != nil {
						return fmt.Errorf("trigger_channel: %w", err)
					}
					record.Config.Trigger = channel
				}
				if raw := stmt.ColumnText(1); raw != "" {
					category, err := ref.ParseCategoryID(raw)
					if err != nil {
						return fmt.Errorf("default_category: %w", err)
					}
					record.Config.DefaultCategory = category
				}
				if raw := stmt.ColumnText(2); raw != "" {
					category, err := ref.ParseCategoryID(raw)
					if err != nil {
						return fmt.Errorf("creation_category: %w", err)
					}
					record.Config.CreationCategory = category
				}
				if err := readEntries(stmt, 3, &record.Policy.Allow); err != nil {
					return fmt.Errorf("allow: %w", err)
				}
				if err := readEntries(stmt, 4, &record.Policy.Deny); err != nil {
					return fmt.Errorf("deny: %w", err)
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("guild store: load %s: %w", guildID, err)
	}
	return record, nil
}

func saveOnConn(conn *sqlite.Conn, record *Record, now time.Time) error {
	allowBlob, err := entriesBlob(record.Policy.Allow)
	if err != nil {
		return fmt.Errorf("guild store: marshal allow: %w", err)
	}
	denyBlob, err := entriesBlob(record.Policy.Deny)
	if err != nil {
		return fmt.Errorf("guild store: marshal deny: %w", err)
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO guilds
		 (guild, trigger_channel, default_category, creation_category, allow, deny, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (guild) DO UPDATE SET
		   trigger_channel = excluded.trigger_channel,
		   default_category = excluded.default_category,
		   creation_category = excluded.creation_category,
		   allow = excluded.allow,
		   deny = excluded.deny,
		   updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.Guild.String(),
				record.Config.Trigger.String(),
				record.Config.DefaultCategory.String(),
				record.Config.CreationCategory.String(),
				allowBlob,
				denyBlob,
				now.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("guild store: save %s: %w", record.Guild, err)
	}
	return nil
}

func entriesBlob(entries []Entry) (any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	data, err := codec.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func readEntries(stmt *sqlite.Stmt, col int, out *[]Entry) error {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	blob := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, blob)
	return codec.Unmarshal(blob, out)
}
