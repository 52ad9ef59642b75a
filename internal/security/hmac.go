// Package security implements the HMAC-authenticated request envelope used
// between the Coordinator and the Signer: every payout/address request
// carries a timestamp, a one-time nonce, and a signature over a
// pipe-joined canonical message, verified in that order by the receiver.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxClockSkew is the maximum allowed difference between a request's
// timestamp and the verifier's local clock, in either direction.
const MaxClockSkew = 60 * time.Second

// NonceTTL is how long a nonce is remembered by the replay-protection
// store after first use.
const NonceTTL = 120 * time.Second

// SignedRequest is the canonical set of fields that get HMAC-signed and
// verified on both sides of the Coordinator<->Signer boundary.
type SignedRequest struct {
	Chain     string
	Address   string
	Amount    string
	RequestID string
	Timestamp int64
	Nonce     string
	Signature string
}

// Message builds the canonical, pipe-joined string that gets signed. Field
// order matters: changing it invalidates every previously signed request.
func (r SignedRequest) Message() string {
	return strings.Join([]string{
		r.Chain,
		r.Address,
		r.Amount,
		r.RequestID,
		strconv.FormatInt(r.Timestamp, 10),
		r.Nonce,
	}, "|")
}

// GenerateNonce returns a fresh, URL-safe random nonce suitable for a
// SignedRequest, mirroring the original system's 18-byte random token.
func GenerateNonce() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sign computes the hex-encoded HMAC-SHA256 signature of msg under key.
func Sign(key []byte, msg string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against the HMAC-SHA256 of msg under key using a
// constant-time comparison, never a plain string equality.
func Verify(key []byte, msg, sig string) bool {
	want, err := hex.DecodeString(Sign(key, msg))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// CheckTimestamp reports an error if ts is further than MaxClockSkew from
// now in either direction, rejecting both stale replays and requests
// signed with a clock too far in the future.
func CheckTimestamp(ts int64, now time.Time) error {
	delta := now.Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	if time.Duration(delta)*time.Second > MaxClockSkew {
		return errors.New("security: timestamp outside allowed clock skew")
	}
	return nil
}

// NonceStore is the minimal replay-protection interface a verifier needs:
// an atomic set-if-absent with a TTL. internal/kv provides the Redis-backed
// implementation used in production; tests supply an in-memory fake.
type NonceStore interface {
	// SetIfAbsent records nonce as used, returning true if it was not
	// already present (and is now recorded), false if it was a replay.
	SetIfAbsent(nonce string, ttl time.Duration) (bool, error)
}

// CheckNonce consults store and returns an error if nonce has been seen
// before within its TTL window.
func CheckNonce(store NonceStore, nonce string) error {
	fresh, err := store.SetIfAbsent(nonce, NonceTTL)
	if err != nil {
		return fmt.Errorf("security: nonce store error: %w", err)
	}
	if !fresh {
		return errors.New("security: nonce replay detected")
	}
	return nil
}

// VerifyEnvelope runs the full ordered check a Signer endpoint performs on
// every incoming SignedRequest: timestamp freshness, then nonce
// uniqueness, then signature validity — in that order, so a stale replay
// is rejected before it ever consumes a nonce slot.
func VerifyEnvelope(key []byte, store NonceStore, r SignedRequest, now time.Time) error {
	if err := CheckTimestamp(r.Timestamp, now); err != nil {
		return err
	}
	if err := CheckNonce(store, r.Nonce); err != nil {
		return err
	}
	if !Verify(key, r.Message(), r.Signature) {
		return errors.New("security: invalid signature")
	}
	return nil
}
