package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/apperr"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/config"
	"github.com/yourusername/trustora/internal/escrow"
	"github.com/yourusername/trustora/internal/idgen"
	"github.com/yourusername/trustora/internal/store"
)

// releaseConfirmTTL mirrors the original request_release's 120-second
// double-tap confirmation window: a buyer must invoke release twice within
// this window before the irreversible transition actually happens.
const releaseConfirmTTL = 120 * time.Second

// Gate is the double-tap confirmation keyspace the release flow needs;
// internal/kv supplies the Redis-backed implementation.
type Gate interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Coordinator owns escrow creation and every lifecycle transition a buyer,
// seller, or admin triggers outside of deposit ingestion (handled by Sink)
// and payout broadcast (handled by the signer itself).
type Coordinator struct {
	Store  *store.Store
	Gate   Gate
	Config *config.Service
	Signer *SignerClient
	Salt   string
}

func New(s *store.Store, gate Gate, cfg *config.Service, signer *SignerClient, salt string) *Coordinator {
	return &Coordinator{Store: s, Gate: gate, Config: cfg, Signer: signer, Salt: salt}
}

// CreateEscrow implements confirm_network's deal-creation path: snapshot
// the live fee schedule, request a fresh deposit address from the signer,
// and insert the escrow in AWAITING_DEPOSIT. buyerID and sellerID are
// expected to already exist as User rows (see EnsureBuyerAndSeller).
func (c *Coordinator) CreateEscrow(ctx context.Context, buyerID, sellerID string, chain chains.Chain, expected amount.Micro, payoutAddress string) (*escrow.Escrow, error) {
	if !chains.ValidateAddress(chain, payoutAddress) {
		return nil, apperr.New(apperr.CodeInvalidInput, apperr.NonRetryable, "invalid payout address for selected chain")
	}

	cfg, err := c.Config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("coordinator: load config: %w", err)
	}

	depositAddress, err := c.Signer.RequestAddress(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("coordinator: request deposit address: %w", err)
	}

	e := &escrow.Escrow{
		ID:             idgen.New(),
		RoomCode:       idgen.RoomCode(),
		Chain:          chain,
		Status:         escrow.AwaitingDeposit,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		DepositAddress: depositAddress,
		ExpectedAmount: expected,
		Fee:            cfg.FeeSnapshot(),
		PayoutAddress:  payoutAddress,
	}
	e.ApplyFeeSnapshot()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := c.Store.Escrows().Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// EnsureBuyerAndSeller idempotently creates the buyer/seller User rows if
// they do not already exist, mirroring get_or_create_user's "upsert on
// first message" behavior.
func (c *Coordinator) EnsureBuyerAndSeller(ctx context.Context, buyerID, buyerHandle, sellerID, sellerHandle string) error {
	if _, err := c.Store.Users().EnsureExists(ctx, buyerID, buyerHandle, c.Salt); err != nil {
		return err
	}
	if _, err := c.Store.Users().EnsureExists(ctx, sellerID, sellerHandle, c.Salt); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) releaseConfirmKey(callerID, escrowID string) string {
	return "release_confirm:" + callerID + ":" + escrowID
}

// RequestRelease implements request_release: only the buyer may trigger
// it, a first tap sets a 120-second confirmation gate and returns
// confirmed=false, and a second tap inside that window actually performs
// the FUNDS_LOCKED -> RELEASE_REQUESTED transition before routing to
// either auto-payout or admin approval, depending on AutoPayoutMax.
func (c *Coordinator) RequestRelease(ctx context.Context, escrowID, callerUserID string) (confirmed, autoPaid bool, err error) {
	gateKey := c.releaseConfirmKey(callerUserID, escrowID)
	exists, err := c.Gate.Exists(ctx, gateKey)
	if err != nil {
		return false, false, fmt.Errorf("coordinator: check release confirm gate: %w", err)
	}
	if !exists {
		if err := c.Gate.SetWithTTL(ctx, gateKey, "1", releaseConfirmTTL); err != nil {
			return false, false, fmt.Errorf("coordinator: set release confirm gate: %w", err)
		}
		return false, false, nil
	}
	if err := c.Gate.Delete(ctx, gateKey); err != nil {
		return false, false, fmt.Errorf("coordinator: clear release confirm gate: %w", err)
	}

	var e *escrow.Escrow
	err = c.Store.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		e, txErr = c.Store.Escrows().GetForUpdate(ctx, tx, escrowID)
		if txErr != nil {
			return txErr
		}
		if e.BuyerID != callerUserID {
			return apperr.New(apperr.CodeUnauthorized, apperr.NonRetryable, "only the buyer may release funds")
		}
		if txErr := e.Transition(escrow.ReleaseRequested); txErr != nil {
			return txErr
		}
		return c.Store.Escrows().Update(ctx, tx, e)
	})
	if err != nil {
		return true, false, err
	}

	cfg, err := c.Config.Get(ctx)
	if err != nil {
		return true, false, fmt.Errorf("coordinator: load config: %w", err)
	}
	if e.NetAmount.Cmp(cfg.AutoPayoutMaxMicro) > 0 {
		return true, false, nil
	}

	if err := c.ApproveAndSendPayout(ctx, escrowID); err != nil {
		return true, false, err
	}
	return true, true, nil
}

// ApproveAndSendPayout implements approve_and_send_payout: transition the
// escrow to RELEASE_APPROVED (idempotently returning early if a payout is
// already in flight) and then call the signer's /payout endpoint. The
// signer itself performs the RELEASE_APPROVED -> PAYOUT_QUEUED ->
// PAYOUT_SENT transitions and the actual broadcast; this call is the
// admin- or auto-payout-triggered entry point into that pipeline.
func (c *Coordinator) ApproveAndSendPayout(ctx context.Context, escrowID string) error {
	var e *escrow.Escrow
	err := c.Store.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		e, txErr = c.Store.Escrows().GetForUpdate(ctx, tx, escrowID)
		if txErr != nil {
			return txErr
		}
		if !e.CanSendPayout() {
			return nil
		}
		if txErr := e.Transition(escrow.ReleaseApproved); txErr != nil {
			return txErr
		}
		return c.Store.Escrows().Update(ctx, tx, e)
	})
	if err != nil {
		return err
	}
	if !e.CanSendPayout() {
		return nil
	}

	if _, _, err := c.Signer.RequestPayout(ctx, e.ID, e.Chain, e.PayoutAddress, e.NetAmount); err != nil {
		return fmt.Errorf("coordinator: signer payout request failed: %w", err)
	}
	// The signer writes payout_tx_hash/fee_tx_hash and the PAYOUT_SENT
	// transition itself once the broadcast succeeds; nothing further to
	// persist here.
	return nil
}

// OpenDispute implements open_dispute: any escrow not already cancelled or
// completed can be disputed, moving it straight to DISPUTED and recording
// a Dispute row in the same transaction.
func (c *Coordinator) OpenDispute(ctx context.Context, escrowID, openedBy, reason string) error {
	return c.Store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := c.Store.Escrows().GetForUpdate(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		if e.Status == escrow.Cancelled || e.Status == escrow.Completed {
			return apperr.New(apperr.CodeIllegalTransition, apperr.NonRetryable, "cannot dispute a cancelled or completed escrow")
		}
		if err := e.Transition(escrow.Disputed); err != nil {
			return err
		}
		if err := c.Store.Escrows().Update(ctx, tx, e); err != nil {
			return err
		}
		return c.Store.Disputes().Insert(ctx, tx, &store.Dispute{
			ID:       idgen.New(),
			EscrowID: e.ID,
			OpenedBy: openedBy,
			Status:   store.DisputeOpen,
			Reason:   reason,
		})
	})
}
