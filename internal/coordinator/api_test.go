package coordinator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleCreateEscrowRejectsMalformedBody(t *testing.T) {
	api := &API{Coordinator: &Coordinator{}}
	req := httptest.NewRequest(http.MethodPost, "/escrows", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateEscrowRejectsUnsupportedChain(t *testing.T) {
	api := &API{Coordinator: &Coordinator{}}
	body := `{"buyer_id":"b1","seller_id":"s1","chain":"DOGE","amount_expected":"10.000000","payout_address":"0xabc"}`
	req := httptest.NewRequest(http.MethodPost, "/escrows", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()

	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateEscrowRejectsInvalidAmount(t *testing.T) {
	api := &API{Coordinator: &Coordinator{}}
	body := `{"buyer_id":"b1","seller_id":"s1","chain":"BEP20","amount_expected":"not-a-number","payout_address":"0xabc"}`
	req := httptest.NewRequest(http.MethodPost, "/escrows", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()

	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReleaseRejectsMalformedBody(t *testing.T) {
	api := &API{Coordinator: &Coordinator{}}
	req := httptest.NewRequest(http.MethodPost, "/escrows/escrow-1/release", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDisputeRejectsMalformedBody(t *testing.T) {
	api := &API{Coordinator: &Coordinator{}}
	req := httptest.NewRequest(http.MethodPost, "/escrows/escrow-1/dispute", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
