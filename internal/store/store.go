// Package store is the session-scoped relational persistence layer for
// the turn engine. Every query is scoped by session_id; it is a
// contract violation for a caller to read across sessions. The Store
// enforces uniqueness and foreign-key cascades but not business
// invariants — those live in internal/managers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/quantumturn/engine/internal/errors"
)

// ErrNotFound is returned when a lookup by key finds no record.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// Store wraps a sqlite connection holding all session-scoped tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at dsn, sets
// WAL journaling for concurrent readers, and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	setting TEXT NOT NULL,
	player_entity_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	total_turns INTEGER NOT NULL DEFAULT 0,
	state_version INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	display_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	is_alive INTEGER NOT NULL DEFAULT 1,
	is_active INTEGER NOT NULL DEFAULT 1,
	attributes_json TEXT NOT NULL DEFAULT '{}',
	appearance_json TEXT NOT NULL DEFAULT '{}',
	background TEXT NOT NULL DEFAULT '',
	personality TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS items (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	display_name TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	owner_entity TEXT NOT NULL DEFAULT '',
	holder_entity TEXT NOT NULL DEFAULT '',
	storage_location TEXT NOT NULL DEFAULT '',
	owner_location TEXT NOT NULL DEFAULT '',
	body_slot TEXT NOT NULL DEFAULT '',
	body_layer INTEGER NOT NULL DEFAULT 0,
	weight REAL NOT NULL DEFAULT 0,
	condition TEXT NOT NULL DEFAULT '',
	properties_json TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS locations (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	display_name TEXT NOT NULL,
	parent TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	exits_json TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS storage_locations (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	kind TEXT NOT NULL,
	owner_entity TEXT NOT NULL DEFAULT '',
	container_item TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS relationships (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	from_entity TEXT NOT NULL,
	to_entity TEXT NOT NULL,
	trust INTEGER NOT NULL DEFAULT 0,
	liking INTEGER NOT NULL DEFAULT 0,
	respect INTEGER NOT NULL DEFAULT 0,
	fear INTEGER NOT NULL DEFAULT 0,
	familiarity INTEGER NOT NULL DEFAULT 0,
	romantic_interest INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, from_entity, to_entity)
);

CREATE TABLE IF NOT EXISTS relationship_changes (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	from_entity TEXT NOT NULL,
	to_entity TEXT NOT NULL,
	dimension TEXT NOT NULL,
	delta INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	occurred_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	subject_type TEXT NOT NULL,
	subject_key TEXT NOT NULL,
	predicate TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	is_secret INTEGER NOT NULL DEFAULT 0,
	certainty REAL NOT NULL DEFAULT 1,
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS needs (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	entity_key TEXT NOT NULL,
	values_json TEXT NOT NULL DEFAULT '{}',
	last_communicated_json TEXT NOT NULL DEFAULT '{}',
	craving_json TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (session_id, entity_key)
);

CREATE TABLE IF NOT EXISTS time_state (
	session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	current_day INTEGER NOT NULL DEFAULT 1,
	current_time TEXT NOT NULL DEFAULT '08:00',
	day_of_week TEXT NOT NULL DEFAULT 'monday',
	weather TEXT NOT NULL DEFAULT 'clear'
);

CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	turn_number INTEGER NOT NULL,
	player_input TEXT NOT NULL,
	gm_response TEXT NOT NULL,
	mentioned_keys_json TEXT NOT NULL DEFAULT '[]',
	is_ooc INTEGER NOT NULL DEFAULT 0,
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, turn_number)
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int64) bool {
	return i != 0
}
