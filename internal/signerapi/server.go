// Package signerapi implements the signer's HTTP surface: the only two
// endpoints the Coordinator is ever allowed to call, /address and /payout,
// each guarded by the same HMAC envelope verification before any
// database or chain interaction happens. Grounded on the original
// services/signer/main.py's handle_address/handle_payout handlers,
// translated from aiohttp to net/http.
package signerapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/apperr"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/config"
	"github.com/yourusername/trustora/internal/escrow"
	"github.com/yourusername/trustora/internal/idgen"
	"github.com/yourusername/trustora/internal/limits"
	"github.com/yourusername/trustora/internal/security"
	"github.com/yourusername/trustora/internal/signerkeys"
	"github.com/yourusername/trustora/internal/store"
)

// Broadcaster is the chain-specific capability the server needs to send a
// signed USDT transfer: BSCBackend and TronBackend each get a thin adapter
// implementing this for their chain in cmd/signer.
type Broadcaster interface {
	SendUSDT(ctx context.Context, fromPrivateKeyHex, toAddress string, net amount.Micro) (txHash string, err error)
}

// Server holds every dependency the two handlers need.
type Server struct {
	HMACKey    []byte
	Nonces     security.NonceStore
	Store      *store.Store
	Config     *config.Service
	Limits     limits.Limits
	KVCounters limits.Counters

	TronPool *signerkeys.Pool
	BSCPool  *signerkeys.Pool

	TronBroadcaster Broadcaster
	BSCBroadcaster  Broadcaster

	FeeWalletTron string
	FeeWalletBSC  string

	Log *zap.Logger
	now func() time.Time
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Routes returns the mux this server answers on.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/address", s.handleAddress)
	mux.HandleFunc("/payout", s.handlePayout)
	return mux
}

func (s *Server) poolFor(c chains.Chain) *signerkeys.Pool {
	if c == chains.TRC20 {
		return s.TronPool
	}
	return s.BSCPool
}

func (s *Server) broadcasterFor(c chains.Chain) Broadcaster {
	if c == chains.TRC20 {
		return s.TronBroadcaster
	}
	return s.BSCBroadcaster
}

func (s *Server) feeWalletFor(c chains.Chain) string {
	if c == chains.TRC20 {
		return s.FeeWalletTron
	}
	return s.FeeWalletBSC
}

type addressRequest struct {
	Chain     string `json:"chain"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type addressResponse struct {
	Address string `json:"address"`
}

// handleAddress implements §4.3: verify the envelope, then hand out the
// first pool address not already assigned to some escrow on this chain.
func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	c := chains.Chain(req.Chain)
	env := security.SignedRequest{
		Chain:     req.Chain,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	}
	// "address|<chain>|<timestamp>|<nonce>" has no address/amount/
	// request-id fields, so Message() is built directly here rather than
	// reusing SignedRequest.Message(), whose field order includes them.
	msg := fmt.Sprintf("address|%s|%d|%s", req.Chain, req.Timestamp, req.Nonce)
	if err := verifyEnvelopeMessage(s.HMACKey, s.Nonces, msg, env, s.clock()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if !c.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return
	}

	ctx := r.Context()
	used, err := s.Store.Escrows().UsedDepositAddresses(ctx, c)
	if err != nil {
		s.logError("address: list used deposit addresses", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	address, ok := s.poolFor(c).FirstUnused(used)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no deposit addresses available")
		return
	}

	writeJSON(w, http.StatusOK, addressResponse{Address: address})
}

type payoutRequest struct {
	EscrowID      string `json:"escrow_id"`
	Chain         string `json:"chain"`
	PayoutAddress string `json:"payout_address"`
	Amount        string `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	Nonce         string `json:"nonce"`
	Signature     string `json:"signature"`
}

type payoutResponse struct {
	SellerTxHash string `json:"seller_tx_hash"`
	FeeTxHash    string `json:"fee_tx_hash,omitempty"`
}

// handlePayout implements §4.5/§4.6: verify the envelope, validate the
// destination address, check the kill switch and rate limits, queue the
// escrow under its row lock, broadcast the seller and (if non-zero) fee
// transfers, then record the result and transition to PAYOUT_SENT.
func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	amt, err := amount.Parse(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	env := security.SignedRequest{
		Chain:     req.Chain,
		Address:   req.PayoutAddress,
		Amount:    req.Amount,
		RequestID: req.EscrowID,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	}
	// "<escrow_id>|<chain>|<payout_address>|<amount>|<timestamp>|<nonce>"
	// matches SignedRequest.Message()'s field order exactly.
	if err := verifyEnvelopeMessage(s.HMACKey, s.Nonces, env.Message(), env, s.clock()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	c := chains.Chain(req.Chain)
	if !c.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return
	}
	if !chains.ValidateAddress(c, req.PayoutAddress) {
		writeError(w, http.StatusBadRequest, "invalid payout address")
		return
	}

	ctx := r.Context()
	cfg, err := s.Config.Get(ctx)
	if err != nil {
		s.logError("payout: load config", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cfg.PausePayouts {
		writeError(w, http.StatusServiceUnavailable, "payouts paused")
		return
	}

	if err := s.Limits.CheckAndTrack(ctx, s.KVCounters, req.PayoutAddress, amt); err != nil {
		writePayoutAppErr(w, err)
		return
	}

	var e *escrow.Escrow
	var alreadySent bool
	err = s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		e, txErr = s.Store.Escrows().GetForUpdate(ctx, tx, req.EscrowID)
		if txErr != nil {
			return txErr
		}
		if e.Status != escrow.ReleaseApproved && e.Status != escrow.PayoutQueued {
			return apperr.New(apperr.CodeIllegalTransition, apperr.NonRetryable, "escrow not approved for payout")
		}
		if !e.CanSendPayout() {
			alreadySent = true
			return nil
		}
		if e.NetAmount.Cmp(amt) != 0 {
			return apperr.New(apperr.CodeAmountMismatch, apperr.NonRetryable, "requested amount does not match escrow net amount")
		}
		if e.Status != escrow.PayoutQueued {
			if txErr := e.Transition(escrow.PayoutQueued); txErr != nil {
				return txErr
			}
		}
		return s.Store.Escrows().Update(ctx, tx, e)
	})
	if err != nil {
		writePayoutAppErr(w, err)
		return
	}
	if alreadySent {
		writeJSON(w, http.StatusOK, payoutResponse{SellerTxHash: e.PayoutTxHash, FeeTxHash: e.FeeTxHash})
		return
	}

	privKey, err := s.poolFor(c).PrivateKey(e.DepositAddress)
	if err != nil {
		s.logError("payout: no private key for deposit address", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sellerTxHash, err := s.broadcasterFor(c).SendUSDT(ctx, privKey, req.PayoutAddress, e.NetAmount)
	if err != nil {
		s.logError("payout: broadcast seller transfer", err)
		writeError(w, http.StatusBadGateway, "chain broadcast failed")
		return
	}

	feeAmount := e.FeeAmount
	var feeTxHash string
	if feeAmount.IsPositive() {
		feeTxHash, err = s.broadcasterFor(c).SendUSDT(ctx, privKey, s.feeWalletFor(c), feeAmount)
		if err != nil {
			// The seller payout already landed on-chain; the fee sweep
			// failing is logged but must not block returning success to
			// the Coordinator, matching the original's best-effort fee_tx.
			s.logError("payout: broadcast fee transfer", err)
		}
	}

	err = s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := s.Store.Escrows().GetForUpdate(ctx, tx, req.EscrowID)
		if err != nil {
			return err
		}
		e.PayoutTxHash = sellerTxHash
		e.FeeTxHash = feeTxHash
		if err := e.Transition(escrow.PayoutSent); err != nil {
			return err
		}
		if err := s.Store.Escrows().Update(ctx, tx, e); err != nil {
			return err
		}
		if feeAmount.IsPositive() {
			return s.Store.Revenue().Record(ctx, tx, idgen.New(), e.ID, c, feeAmount, feeTxHash)
		}
		return nil
	})
	if err != nil {
		s.logError("payout: finalize PAYOUT_SENT", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, payoutResponse{SellerTxHash: sellerTxHash, FeeTxHash: feeTxHash})
}

func verifyEnvelopeMessage(key []byte, nonces security.NonceStore, msg string, env security.SignedRequest, now time.Time) error {
	if err := security.CheckTimestamp(env.Timestamp, now); err != nil {
		return err
	}
	if err := security.CheckNonce(nonces, env.Nonce); err != nil {
		return err
	}
	if !security.Verify(key, msg, env.Signature) {
		return fmt.Errorf("security: invalid signature")
	}
	return nil
}

func writePayoutAppErr(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := http.StatusInternalServerError
	switch ae.Code {
	case apperr.CodeIllegalTransition:
		status = http.StatusConflict
	case apperr.CodeAmountMismatch, apperr.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperr.CodeLimitExceeded, apperr.CodeRateLimited:
		status = http.StatusTooManyRequests
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	}
	writeError(w, status, ae.Error())
}

func (s *Server) logError(msg string, err error) {
	if s.Log == nil {
		return
	}
	s.Log.Error(msg, zap.Error(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
