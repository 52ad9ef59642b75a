package signerapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/apperr"
	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/keyfile"
	"github.com/yourusername/trustora/internal/security"
	"github.com/yourusername/trustora/internal/signerkeys"
)

type fakeNonceStore struct {
	seen map[string]bool
}

func newFakeNonceStore() *fakeNonceStore {
	return &fakeNonceStore{seen: make(map[string]bool)}
}

func (f *fakeNonceStore) SetIfAbsent(nonce string, ttl time.Duration) (bool, error) {
	if f.seen[nonce] {
		return false, nil
	}
	f.seen[nonce] = true
	return true, nil
}

func TestVerifyEnvelopeMessageAcceptsValidAddressEnvelope(t *testing.T) {
	key := []byte("shared-secret")
	now := time.Unix(1_700_000_000, 0)
	msg := "address|TRC20|1700000000|nonce-1"
	env := security.SignedRequest{
		Chain:     "TRC20",
		Timestamp: now.Unix(),
		Nonce:     "nonce-1",
		Signature: security.Sign(key, msg),
	}

	require.NoError(t, verifyEnvelopeMessage(key, newFakeNonceStore(), msg, env, now))
}

func TestVerifyEnvelopeMessageRejectsBadSignature(t *testing.T) {
	key := []byte("shared-secret")
	now := time.Unix(1_700_000_000, 0)
	msg := "address|BEP20|1700000000|nonce-2"
	env := security.SignedRequest{
		Chain:     "BEP20",
		Timestamp: now.Unix(),
		Nonce:     "nonce-2",
		Signature: security.Sign([]byte("wrong-secret"), msg),
	}

	require.Error(t, verifyEnvelopeMessage(key, newFakeNonceStore(), msg, env, now))
}

func TestVerifyEnvelopeMessageChecksTimestampBeforeNonce(t *testing.T) {
	key := []byte("shared-secret")
	now := time.Unix(1_700_000_000, 0)
	stale := now.Add(-61 * time.Second)
	msg := "address|TRC20|" + "1699999939" + "|nonce-3"
	env := security.SignedRequest{
		Chain:     "TRC20",
		Timestamp: stale.Unix(),
		Nonce:     "nonce-3",
		Signature: security.Sign(key, msg),
	}

	nonces := newFakeNonceStore()
	err := verifyEnvelopeMessage(key, nonces, msg, env, now)
	require.Error(t, err)
	// A stale timestamp must be rejected before the nonce is ever
	// consumed, so a corrected retry with the same nonce still succeeds.
	require.False(t, nonces.seen["nonce-3"])
}

func TestVerifyEnvelopeMessageRejectsNonceReplay(t *testing.T) {
	key := []byte("shared-secret")
	now := time.Unix(1_700_000_000, 0)
	msg := "address|TRC20|1700000000|nonce-4"
	env := security.SignedRequest{
		Chain:     "TRC20",
		Timestamp: now.Unix(),
		Nonce:     "nonce-4",
		Signature: security.Sign(key, msg),
	}

	nonces := newFakeNonceStore()
	require.NoError(t, verifyEnvelopeMessage(key, nonces, msg, env, now))
	require.Error(t, verifyEnvelopeMessage(key, nonces, msg, env, now))
}

func TestServerDispatchesPoolsBroadcastersAndFeeWalletsByChain(t *testing.T) {
	tronPool, err := signerkeys.BuildPool(chains.TRC20, []keyfile.KeyEntry{})
	require.NoError(t, err)
	bscPool, err := signerkeys.BuildPool(chains.BEP20, []keyfile.KeyEntry{})
	require.NoError(t, err)

	tronBroadcaster := &stubBroadcaster{}
	bscBroadcaster := &stubBroadcaster{}

	s := &Server{
		TronPool:        tronPool,
		BSCPool:         bscPool,
		TronBroadcaster: tronBroadcaster,
		BSCBroadcaster:  bscBroadcaster,
		FeeWalletTron:   "Tfeewallet",
		FeeWalletBSC:    "0xfeewallet",
	}

	require.Same(t, tronPool, s.poolFor(chains.TRC20))
	require.Same(t, bscPool, s.poolFor(chains.BEP20))
	require.Equal(t, tronBroadcaster, s.broadcasterFor(chains.TRC20))
	require.Equal(t, bscBroadcaster, s.broadcasterFor(chains.BEP20))
	require.Equal(t, "Tfeewallet", s.feeWalletFor(chains.TRC20))
	require.Equal(t, "0xfeewallet", s.feeWalletFor(chains.BEP20))
}

type stubBroadcaster struct{}

func (b *stubBroadcaster) SendUSDT(_ context.Context, _, _ string, _ amount.Micro) (string, error) {
	return "", nil
}

func TestWritePayoutAppErrMapsCodesToStatuses(t *testing.T) {
	cases := []struct {
		code apperr.Code
		want int
	}{
		{apperr.CodeIllegalTransition, 409},
		{apperr.CodeAmountMismatch, 400},
		{apperr.CodeInvalidInput, 400},
		{apperr.CodeLimitExceeded, 429},
		{apperr.CodeRateLimited, 429},
		{apperr.CodeNotFound, 404},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writePayoutAppErr(rec, apperr.New(tc.code, apperr.NonRetryable, "boom"))
		require.Equal(t, tc.want, rec.Code)
	}
}
