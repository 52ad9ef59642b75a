package coordinator

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/chainwatch"
	"github.com/yourusername/trustora/internal/escrow"
	"github.com/yourusername/trustora/internal/metrics"
	"github.com/yourusername/trustora/internal/store"
)

// Sink implements chainwatch.DepositSink directly against the database:
// applying a confirmed transfer to whichever escrow owns its deposit
// address is §4.4 step 6 of the deposit pipeline, run under the same row
// lock discipline as every other escrow mutation. It depends only on
// *store.Store (not the full Coordinator) so a chain watcher process can
// apply deposits without holding signer credentials or a Gate client it
// has no other use for.
type Sink struct {
	Store *store.Store
	Chain chains.Chain
}

func NewSink(s *store.Store, chain chains.Chain) *Sink {
	return &Sink{Store: s, Chain: chain}
}

// KnownDepositAddresses returns the deposit addresses on s.Chain currently
// awaiting a deposit, the set the watcher filters incoming transfers
// against before ever touching the database's row-lock path.
func (s *Sink) KnownDepositAddresses(ctx context.Context) (map[string]bool, error) {
	escrows, err := s.Store.Escrows().ListAwaitingDeposit(ctx, s.Chain)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(escrows))
	for _, e := range escrows {
		out[e.DepositAddress] = true
	}
	return out, nil
}

// ApplyDeposit idempotently records transfer against the escrow owning its
// ToAddress, computing the resulting DEPOSIT_SEEN -> {FUNDS_LOCKED,
// UNDERPAID, OVERPAID_REVIEW} transition and, on a funds-locked outcome,
// immediately finalizing the net payout amount against the escrow's fee
// snapshot — mirroring the original watcher's direct call into the shared
// deposits.py apply logic rather than leaving it to a second pass.
func (s *Sink) ApplyDeposit(ctx context.Context, transfer chainwatch.Transfer) error {
	return s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Store.Escrows().GetForUpdateByAddress(ctx, tx, s.Chain, transfer.ToAddress)
		if errors.Is(err, store.ErrNotFound) {
			// No escrow currently claims this address; nothing to do.
			return nil
		}
		if err != nil {
			return err
		}

		if e.Status != escrow.AwaitingDeposit && e.Status != escrow.Underpaid {
			return nil
		}
		if !e.CanRecordDeposit(transfer.TxHash) {
			return nil
		}

		if e.Status == escrow.AwaitingDeposit {
			if err := e.Transition(escrow.DepositSeen); err != nil {
				return err
			}
		}

		result := e.RecordDepositWithConfirmations(transfer.TxHash, transfer.Amount, transfer.Confirmations)
		if err := e.Transition(result); err != nil {
			return err
		}
		// fee_amount/net_amount are frozen from ExpectedAmount at creation
		// (see Coordinator.CreateEscrow); a funds-locked deposit always
		// matches ExpectedAmount exactly, so nothing is recomputed here.

		metrics.DepositsRecordedTotal.WithLabelValues(string(s.Chain), string(result)).Inc()
		return s.Store.Escrows().Update(ctx, tx, e)
	})
}
