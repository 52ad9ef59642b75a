package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/escrow"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// EscrowStore is the repository for the escrows table.
type EscrowStore struct {
	s *Store
}

func (s *Store) Escrows() *EscrowStore { return &EscrowStore{s: s} }

const escrowSelectColumns = `
	SELECT id, room_code, chain, status, buyer_id, seller_id,
		deposit_address, deposit_tx_hash, deposit_confirmations,
		expected_amount_micro, received_amount_micro, fee_amount_micro, net_amount_micro,
		fee_flat_micro, fee_percent_bps, fee_threshold_micro,
		payout_address, payout_tx_hash, fee_tx_hash, payout_confirmations,
		chat_frozen, created_at, updated_at`

// Insert creates a new escrow row. The caller is expected to have already
// validated e (see escrow.Escrow.Validate) and already called
// e.ApplyFeeSnapshot so fee_amount_micro/net_amount_micro are frozen from
// expected_amount_micro before the row ever exists.
func (r *EscrowStore) Insert(ctx context.Context, e *escrow.Escrow) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO escrows (
			id, room_code, chain, status, buyer_id, seller_id, deposit_address,
			expected_amount_micro, fee_amount_micro, net_amount_micro,
			fee_flat_micro, fee_percent_bps, fee_threshold_micro
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.RoomCode, string(e.Chain), string(e.Status), e.BuyerID, e.SellerID, e.DepositAddress,
		e.ExpectedAmount.Int64(), e.FeeAmount.Int64(), e.NetAmount.Int64(),
		e.Fee.FlatMicro.Int64(), e.Fee.PercentBasisPoints, e.Fee.ThresholdMicro.Int64(),
	)
	if err != nil {
		return fmt.Errorf("store: insert escrow: %w", err)
	}
	return nil
}

// GetForUpdate reads escrow id inside tx with a row-level exclusive lock,
// the sole concurrency primitive used to serialize concurrent writers
// (a chain watcher and a payout request racing on the same escrow, say).
// Callers MUST hold tx until they have either committed the resulting
// mutation or rolled back.
func (r *EscrowStore) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*escrow.Escrow, error) {
	row := tx.QueryRowContext(ctx, escrowSelectColumns+`
		FROM escrows WHERE id = $1 FOR UPDATE`, id)
	return scanEscrow(row)
}

// Get reads escrow id without taking a lock, for read-only call sites
// (status displays, dashboards) that must never participate in the
// locking discipline.
func (r *EscrowStore) Get(ctx context.Context, id string) (*escrow.Escrow, error) {
	row := r.s.db.QueryRowContext(ctx, escrowSelectColumns+`
		FROM escrows WHERE id = $1`, id)
	return scanEscrow(row)
}

// GetForUpdateByAddress locks and returns the escrow currently assigned
// deposit address addr on chain c, the lookup the chain watcher's deposit
// sink performs for every transfer landing on a recognized address.
func (r *EscrowStore) GetForUpdateByAddress(ctx context.Context, tx *sql.Tx, c chains.Chain, addr string) (*escrow.Escrow, error) {
	row := tx.QueryRowContext(ctx, escrowSelectColumns+`
		FROM escrows WHERE chain = $1 AND deposit_address = $2 FOR UPDATE`, string(c), addr)
	return scanEscrow(row)
}

// GetByRoomCode looks up an escrow by its short human-readable room code,
// the identifier shown to buyer and seller in chat.
func (r *EscrowStore) GetByRoomCode(ctx context.Context, roomCode string) (*escrow.Escrow, error) {
	row := r.s.db.QueryRowContext(ctx, escrowSelectColumns+`
		FROM escrows WHERE room_code = $1`, roomCode)
	return scanEscrow(row)
}

// ListAwaitingDeposit returns every escrow on chain c currently in
// AWAITING_DEPOSIT or UNDERPAID status, the set a chain watcher scans logs
// against on each pass.
func (r *EscrowStore) ListAwaitingDeposit(ctx context.Context, c chains.Chain) ([]*escrow.Escrow, error) {
	rows, err := r.s.db.QueryContext(ctx, escrowSelectColumns+`
		FROM escrows WHERE chain = $1 AND status IN ('AWAITING_DEPOSIT', 'UNDERPAID')`,
		string(c))
	if err != nil {
		return nil, fmt.Errorf("store: list awaiting deposit: %w", err)
	}
	defer rows.Close()

	var out []*escrow.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UsedDepositAddresses returns the set of deposit addresses on chain c
// already assigned to some escrow, consulted by the signer's address
// allocation pipeline before handing out a fresh one from the pool.
func (r *EscrowStore) UsedDepositAddresses(ctx context.Context, c chains.Chain) (map[string]bool, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT DISTINCT deposit_address FROM escrows WHERE chain = $1`, string(c))
	if err != nil {
		return nil, fmt.Errorf("store: used deposit addresses: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		used[addr] = true
	}
	return used, rows.Err()
}

// Update persists every mutable field of e. It must be called with the
// same tx that produced e via GetForUpdate, keeping the read-validate-write
// sequence inside one lock hold.
func (r *EscrowStore) Update(ctx context.Context, tx *sql.Tx, e *escrow.Escrow) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE escrows SET
			status = $2, deposit_address = $3, deposit_tx_hash = $4, deposit_confirmations = $5,
			received_amount_micro = $6, net_amount_micro = $7,
			payout_address = $8, payout_tx_hash = $9, fee_tx_hash = $10, payout_confirmations = $11,
			chat_frozen = $12, updated_at = now()
		WHERE id = $1`,
		e.ID, string(e.Status), e.DepositAddress, nullIfEmpty(e.DepositTxHash), e.DepositConfirmations,
		e.ReceivedAmount.Int64(), e.NetAmount.Int64(),
		e.PayoutAddress, e.PayoutTxHash, e.FeeTxHash, e.PayoutConfirmations,
		e.ChatFrozen,
	)
	if err != nil {
		return fmt.Errorf("store: update escrow: %w", err)
	}
	return nil
}

// nullIfEmpty maps Go's zero value for "no deposit tx yet" to SQL NULL, so
// the (chain, deposit_tx_hash) unique constraint allows any number of
// escrows that have not received a deposit yet (invariant: unique only
// when non-null).
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEscrow(row scanner) (*escrow.Escrow, error) {
	var (
		e                                                           escrow.Escrow
		chain, status                                               string
		depositTxHash                                               sql.NullString
		expectedMicro, receivedMicro, feeAmountMicro, netMicro       int64
		feeFlatMicro, feeThresholdMicro, feePercentBps               int64
	)
	err := row.Scan(
		&e.ID, &e.RoomCode, &chain, &status, &e.BuyerID, &e.SellerID,
		&e.DepositAddress, &depositTxHash, &e.DepositConfirmations,
		&expectedMicro, &receivedMicro, &feeAmountMicro, &netMicro,
		&feeFlatMicro, &feePercentBps, &feeThresholdMicro,
		&e.PayoutAddress, &e.PayoutTxHash, &e.FeeTxHash, &e.PayoutConfirmations,
		&e.ChatFrozen, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan escrow: %w", err)
	}

	e.DepositTxHash = depositTxHash.String
	e.Chain = chains.Chain(chain)
	e.Status = escrow.Status(status)
	e.ExpectedAmount = amount.FromInt64(expectedMicro)
	e.ReceivedAmount = amount.FromInt64(receivedMicro)
	e.FeeAmount = amount.FromInt64(feeAmountMicro)
	e.NetAmount = amount.FromInt64(netMicro)
	e.Fee = amount.FeeSnapshot{
		FlatMicro:          amount.FromInt64(feeFlatMicro),
		PercentBasisPoints: feePercentBps,
		ThresholdMicro:     amount.FromInt64(feeThresholdMicro),
	}
	return &e, nil
}
