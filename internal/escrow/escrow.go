package escrow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
)

// Escrow is the aggregate every component locks, reads, and advances. It
// mirrors the `escrows` table row shape one-for-one.
type Escrow struct {
	ID       string
	RoomCode string
	Chain    chains.Chain
	Status   Status

	BuyerID  string
	SellerID string

	DepositAddress        string
	DepositTxHash         string
	DepositConfirmations  int64

	ExpectedAmount amount.Micro
	ReceivedAmount amount.Micro
	FeeAmount      amount.Micro
	NetAmount      amount.Micro

	Fee amount.FeeSnapshot

	PayoutAddress        string
	PayoutTxHash         string
	FeeTxHash            string
	PayoutConfirmations  int64

	ChatFrozen bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition advances e.Status to `to`, validating the edge first. It does
// not persist anything; callers are expected to hold a row lock for the
// duration of the read-validate-write-commit sequence (see internal/store).
func (e *Escrow) Transition(to Status) error {
	if err := ValidateTransition(e.Status, to); err != nil {
		return err
	}
	e.Status = to
	return nil
}

// RecordDeposit applies a confirmed on-chain transfer to the escrow,
// quantizing the received amount and computing which status the deposit
// moves the escrow into. It mutates e in place and returns the resulting
// status for the caller to pass to Transition.
//
// The comparison is against e.ExpectedAmount: an exact or larger amount
// within the fee-adjustment tolerance locks the funds, a smaller amount is
// underpaid, and a meaningfully larger amount is flagged for manual review
// rather than silently accepted.
func (e *Escrow) RecordDeposit(txHash string, received amount.Micro) Status {
	return e.RecordDepositWithConfirmations(txHash, received, 0)
}

// RecordDepositWithConfirmations is RecordDeposit plus the confirmation
// depth observed at the moment of recording, persisted on the escrow for
// display and audit purposes.
func (e *Escrow) RecordDepositWithConfirmations(txHash string, received amount.Micro, confirmations int64) Status {
	e.DepositTxHash = txHash
	e.ReceivedAmount = received
	e.DepositConfirmations = confirmations

	switch received.Cmp(e.ExpectedAmount) {
	case 0:
		return FundsLocked
	case -1:
		return Underpaid
	default:
		return OverpaidReview
	}
}

// ApplyFeeSnapshot derives FeeAmount and NetAmount from ExpectedAmount
// against e.Fee and freezes them on the escrow. It is called exactly once,
// at creation: fee_amount + net_amount == amount_expected must hold before
// any deposit ever lands, and neither value is recomputed from whatever
// actually arrives on-chain.
func (e *Escrow) ApplyFeeSnapshot() {
	e.FeeAmount = e.Fee.CalculateFee(e.ExpectedAmount)
	e.NetAmount = e.ExpectedAmount.Sub(e.FeeAmount)
}

// ToggleChatFrozen flips the independent, admin-controlled chat-freeze
// flag. It is not state-machine driven: deposit and payout processing never
// touch it, matching the original system's separation of concerns between
// escrow lifecycle and chat moderation.
func (e *Escrow) ToggleChatFrozen() {
	e.ChatFrozen = !e.ChatFrozen
}

// CanRecordDeposit reports whether txHash may be applied to this escrow: the
// escrow has no deposit recorded yet, or the recorded hash is this same one
// (a rescan replay). A different existing hash is rejected, making deposit
// recording idempotent against a watcher that rescans the same block range
// twice while still refusing to let a second distinct transfer overwrite it.
func (e *Escrow) CanRecordDeposit(txHash string) bool {
	return e.DepositTxHash == "" || e.DepositTxHash == txHash
}

// CanSendPayout reports whether a payout has not already been broadcast,
// making payout dispatch idempotent against a Coordinator retry after a
// network timeout that actually succeeded on the signer side.
func (e *Escrow) CanSendPayout() bool {
	return e.PayoutTxHash == ""
}

// UserPublicHash derives the short, non-reversible identifier shown in
// public review listings: "U#" followed by four uppercase hex characters
// of sha256(userID + ":" + salt). It is deliberately short and collidable
// across users; its purpose is pseudonymous display, not identification.
func UserPublicHash(userID, salt string) string {
	sum := sha256.Sum256([]byte(userID + ":" + salt))
	return "U#" + strings.ToUpper(hex.EncodeToString(sum[:]))[:4]
}

// Validate performs structural sanity checks on a newly constructed escrow
// before it is persisted, independent of state-machine transition rules.
func (e *Escrow) Validate() error {
	if !e.Chain.Valid() {
		return fmt.Errorf("escrow: unknown chain %q", e.Chain)
	}
	if e.BuyerID == "" || e.SellerID == "" {
		return fmt.Errorf("escrow: buyer and seller are required")
	}
	if e.BuyerID == e.SellerID {
		return fmt.Errorf("escrow: buyer and seller must differ")
	}
	if !e.ExpectedAmount.IsPositive() {
		return fmt.Errorf("escrow: expected amount must be positive")
	}
	return nil
}
