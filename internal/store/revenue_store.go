package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
)

// RevenueStore is a write-only ledger: one row per completed payout,
// recording the fee the platform actually collected. Per spec non-goals
// there is no read-side reporting API in this service; the table exists
// purely so a downstream reporting job can query it directly.
type RevenueStore struct{ s *Store }

func (s *Store) Revenue() *RevenueStore { return &RevenueStore{s: s} }

// Record writes one revenue row inside tx, so it commits atomically with
// the same transaction that transitions the escrow to PAYOUT_SENT.
func (r *RevenueStore) Record(ctx context.Context, tx *sql.Tx, id, escrowID string, c chains.Chain, fee amount.Micro, feeTxHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO revenue (id, escrow_id, chain, fee_micro, fee_tx_hash)
		VALUES ($1, $2, $3, $4, $5)`,
		id, escrowID, string(c), fee.Int64(), feeTxHash)
	if err != nil {
		return fmt.Errorf("store: record revenue: %w", err)
	}
	return nil
}
