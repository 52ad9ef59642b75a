package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DisputeStatus mirrors the original system's small dispute lifecycle,
// independent of (and nested inside) the owning escrow's own status.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "OPEN"
	DisputeResolved DisputeStatus = "RESOLVED"
)

type Dispute struct {
	ID         string
	EscrowID   string
	OpenedBy   string
	Status     DisputeStatus
	Reason     string
	Resolution string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type DisputeStore struct{ s *Store }

func (s *Store) Disputes() *DisputeStore { return &DisputeStore{s: s} }

func (r *DisputeStore) Insert(ctx context.Context, tx *sql.Tx, d *Dispute) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO disputes (id, escrow_id, opened_by, status, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.EscrowID, d.OpenedBy, string(d.Status), d.Reason)
	if err != nil {
		return fmt.Errorf("store: insert dispute: %w", err)
	}
	return nil
}

func (r *DisputeStore) Resolve(ctx context.Context, tx *sql.Tx, id, resolution string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE disputes SET status = $2, resolution = $3, resolved_at = now()
		WHERE id = $1`, id, string(DisputeResolved), resolution)
	if err != nil {
		return fmt.Errorf("store: resolve dispute: %w", err)
	}
	return nil
}

func (r *DisputeStore) ListForEscrow(ctx context.Context, escrowID string) ([]*Dispute, error) {
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, escrow_id, opened_by, status, reason, resolution, created_at, resolved_at
		FROM disputes WHERE escrow_id = $1 ORDER BY created_at`, escrowID)
	if err != nil {
		return nil, fmt.Errorf("store: list disputes: %w", err)
	}
	defer rows.Close()

	var out []*Dispute
	for rows.Next() {
		var d Dispute
		var status string
		if err := rows.Scan(&d.ID, &d.EscrowID, &d.OpenedBy, &status, &d.Reason, &d.Resolution, &d.CreatedAt, &d.ResolvedAt); err != nil {
			return nil, err
		}
		d.Status = DisputeStatus(status)
		out = append(out, &d)
	}
	return out, rows.Err()
}
