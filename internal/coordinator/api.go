package coordinator

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/apperr"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/escrow"
)

// API is the coordinator's own HTTP front door. The original system's front
// door was a Telegram bot (aiogram handlers in app/main.go) that is out of
// scope here; this exposes the same deal-creation, release, and dispute
// operations as a plain JSON API so any front end (bot, web, CLI) can drive
// the coordinator without depending on a chat transport.
type API struct {
	Coordinator *Coordinator
	Log         *zap.Logger
}

func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /escrows", a.handleCreateEscrow)
	mux.HandleFunc("POST /escrows/{id}/release", a.handleRequestRelease)
	mux.HandleFunc("POST /escrows/{id}/dispute", a.handleOpenDispute)
	return mux
}

type createEscrowRequest struct {
	BuyerID       string `json:"buyer_id"`
	BuyerHandle   string `json:"buyer_handle"`
	SellerID      string `json:"seller_id"`
	SellerHandle  string `json:"seller_handle"`
	Chain         string `json:"chain"`
	Expected      string `json:"amount_expected"`
	PayoutAddress string `json:"payout_address"`
}

type escrowResponse struct {
	ID             string `json:"id"`
	RoomCode       string `json:"room_code"`
	Status         string `json:"status"`
	DepositAddress string `json:"deposit_address"`
}

// handleCreateEscrow implements confirm_network: ensure both parties exist
// as users, then create the escrow in AWAITING_DEPOSIT with a freshly
// allocated deposit address and the fee schedule in effect right now.
func (a *API) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	c := chains.Chain(req.Chain)
	if !c.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return
	}

	expected, err := amount.Parse(req.Expected)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_expected")
		return
	}

	ctx := r.Context()
	if err := a.Coordinator.EnsureBuyerAndSeller(ctx, req.BuyerID, req.BuyerHandle, req.SellerID, req.SellerHandle); err != nil {
		a.logError("create escrow: ensure users", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e, err := a.Coordinator.CreateEscrow(ctx, req.BuyerID, req.SellerID, c, expected, req.PayoutAddress)
	if err != nil {
		writeAppErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, escrowResponse{
		ID:             e.ID,
		RoomCode:       e.RoomCode,
		Status:         string(e.Status),
		DepositAddress: e.DepositAddress,
	})
}

type releaseRequest struct {
	CallerUserID string `json:"caller_user_id"`
}

type releaseResponse struct {
	Confirmed bool `json:"confirmed"`
	AutoPaid  bool `json:"auto_paid"`
}

// handleRequestRelease implements request_release's double-tap: the first
// call with a given caller/escrow pair only arms the confirmation gate, the
// second call within the window actually moves the escrow and may trigger
// auto-payout.
func (a *API) handleRequestRelease(w http.ResponseWriter, r *http.Request) {
	escrowID := r.PathValue("id")
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	confirmed, autoPaid, err := a.Coordinator.RequestRelease(r.Context(), escrowID, req.CallerUserID)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, releaseResponse{Confirmed: confirmed, AutoPaid: autoPaid})
}

type disputeRequest struct {
	OpenedBy string `json:"opened_by"`
	Reason   string `json:"reason"`
}

// handleOpenDispute implements open_dispute: freeze the deal into DISPUTED
// and record the dispute, rejecting only escrows already cancelled or
// completed.
func (a *API) handleOpenDispute(w http.ResponseWriter, r *http.Request) {
	escrowID := r.PathValue("id")
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := a.Coordinator.OpenDispute(r.Context(), escrowID, req.OpenedBy, req.Reason); err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(escrow.Disputed)})
}

func writeAppErr(w http.ResponseWriter, err error) {
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
	case apperr.CodeUnauthorized:
		status = http.StatusForbidden
	case apperr.CodeLimitExceeded, apperr.CodeRateLimited:
		status = http.StatusTooManyRequests
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	}
	writeError(w, status, ae.Error())
}

func (a *API) logError(msg string, err error) {
	if a.Log == nil {
		return
	}
	a.Log.Error(msg, zap.Error(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
