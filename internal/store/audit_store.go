package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// AuditEntry is one append-only audit record. Unlike the teacher's NDJSON
// file logger, trustora's audit trail is a DB table so it can be joined
// against escrow rows and participates in the same transactions that
// mutate them (e.g. a config update writes its AuditEntry in the same
// transaction as the Config/ConfigHistory rows).
type AuditEntry struct {
	ID       string
	ActorID  string
	Action   string
	EscrowID string
	Metadata map[string]any
}

type AuditStore struct{ s *Store }

func (s *Store) Audit() *AuditStore { return &AuditStore{s: s} }

// Record appends e inside tx.
func (r *AuditStore) Record(ctx context.Context, tx *sql.Tx, e AuditEntry) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal audit metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_id, action, escrow_id, metadata_json)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ActorID, e.Action, e.EscrowID, string(metaJSON))
	if err != nil {
		return fmt.Errorf("store: record audit entry: %w", err)
	}
	return nil
}

// RecordStandalone appends e outside of any caller-managed transaction,
// for call sites that have no other write to bundle it with.
func (r *AuditStore) RecordStandalone(ctx context.Context, e AuditEntry) error {
	return r.s.WithTx(ctx, func(tx *sql.Tx) error {
		return r.Record(ctx, tx, e)
	})
}
