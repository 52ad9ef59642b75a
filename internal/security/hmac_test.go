package security

import (
	"testing"
	"time"
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

func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("secret")
	msg := "TRC20|Tabc|100.000000|req-1|1700000000|nonce-1"
	sig := Sign(key, msg)
	if !Verify(key, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify([]byte("wrong-key"), msg, sig) {
		t.Fatal("expected signature to fail under wrong key")
	}
}

func TestCheckTimestampFreshAndStale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if err := CheckTimestamp(now.Unix(), now); err != nil {
		t.Errorf("fresh timestamp rejected: %v", err)
	}
	if err := CheckTimestamp(now.Add(-61*time.Second).Unix(), now); err == nil {
		t.Error("stale timestamp should be rejected")
	}
	if err := CheckTimestamp(now.Add(61*time.Second).Unix(), now); err == nil {
		t.Error("future timestamp should be rejected")
	}
}

func TestCheckNonceReplay(t *testing.T) {
	store := newFakeNonceStore()
	if err := CheckNonce(store, "n1"); err != nil {
		t.Fatalf("first use should succeed: %v", err)
	}
	if err := CheckNonce(store, "n1"); err == nil {
		t.Error("replayed nonce should be rejected")
	}
}

func TestVerifyEnvelopeOrdersChecks(t *testing.T) {
	key := []byte("secret")
	store := newFakeNonceStore()
	now := time.Unix(1_700_000_000, 0)

	req := SignedRequest{
		Chain:     "TRC20",
		Address:   "Tabc",
		Amount:    "100.000000",
		RequestID: "req-1",
		Timestamp: now.Unix(),
		Nonce:     "n1",
	}
	req.Signature = Sign(key, req.Message())

	if err := VerifyEnvelope(key, store, req, now); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}
	// Replaying the identical request must fail on nonce reuse.
	if err := VerifyEnvelope(key, store, req, now); err == nil {
		t.Error("replayed envelope should be rejected")
	}
}

func TestGenerateNonceIsUnique(t *testing.T) {
	n1, err := GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}
	n2, err := GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}
	if n1 == n2 {
		t.Error("expected distinct nonces")
	}
}
