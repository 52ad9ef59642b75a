// Package store implements the Postgres-backed relational store: the
// authoritative source of truth for every escrow, guarded by
// "SELECT ... FOR UPDATE" row locks rather than any application-level
// mutex, so that the Coordinator and the chain watchers can run as
// multiple independent processes against the same database safely.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps a *sql.DB with the schema this service needs and exposes one
// repository per table.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres at dsn, verifies connectivity, tunes the pool,
// and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB, for callers (e.g. migrations tooling)
// that need raw access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise. Every multi-statement mutation in this package
// goes through WithTx so a partial failure never leaves the database half
// updated.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit failed: %w", err)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL DEFAULT '',
	public_hash TEXT NOT NULL UNIQUE,
	is_blocked BOOLEAN NOT NULL DEFAULT false,
	broadcast_opt_in BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS escrows (
	id TEXT PRIMARY KEY,
	room_code TEXT NOT NULL UNIQUE,
	chain TEXT NOT NULL,
	status TEXT NOT NULL,
	buyer_id TEXT NOT NULL REFERENCES users(id),
	seller_id TEXT NOT NULL REFERENCES users(id),
	deposit_address TEXT NOT NULL,
	deposit_tx_hash TEXT,
	deposit_confirmations BIGINT NOT NULL DEFAULT 0,
	expected_amount_micro BIGINT NOT NULL,
	received_amount_micro BIGINT NOT NULL DEFAULT 0,
	fee_amount_micro BIGINT NOT NULL,
	net_amount_micro BIGINT NOT NULL,
	fee_flat_micro BIGINT NOT NULL,
	fee_percent_bps BIGINT NOT NULL,
	fee_threshold_micro BIGINT NOT NULL,
	payout_address TEXT NOT NULL DEFAULT '',
	payout_tx_hash TEXT NOT NULL DEFAULT '',
	fee_tx_hash TEXT NOT NULL DEFAULT '',
	payout_confirmations BIGINT NOT NULL DEFAULT 0,
	chat_frozen BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (chain, deposit_address),
	UNIQUE (chain, deposit_tx_hash)
);

CREATE INDEX IF NOT EXISTS idx_escrows_status_chain ON escrows(chain, status);
CREATE INDEX IF NOT EXISTS idx_escrows_deposit_address ON escrows(deposit_address);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	sender_id TEXT NOT NULL,
	role TEXT NOT NULL,
	message_type TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS disputes (
	id TEXT PRIMARY KEY,
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	opened_by TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	resolution TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	author_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	rating TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS revenue (
	id TEXT PRIMARY KEY,
	escrow_id TEXT NOT NULL REFERENCES escrows(id),
	chain TEXT NOT NULL,
	fee_micro BIGINT NOT NULL,
	fee_tx_hash TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	escrow_id TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS config (
	id INTEGER PRIMARY KEY DEFAULT 1,
	config_json TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (id = 1)
);

CREATE TABLE IF NOT EXISTS config_history (
	id TEXT PRIMARY KEY,
	config_json TEXT NOT NULL,
	changed_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
