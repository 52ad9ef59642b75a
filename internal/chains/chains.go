// Package chains holds the small set of chain/token facts trustora cares
// about: two deposit rails (TRC20 on Tron, BEP20 on BNB Smart Chain), both
// carrying a single token (USDT), each with its own address shape and
// confirmation-depth requirement.
package chains

import "regexp"

// Chain identifies one of the two supported deposit rails.
type Chain string

const (
	TRC20 Chain = "TRC20"
	BEP20 Chain = "BEP20"
)

// Valid reports whether c is one of the known chains.
func (c Chain) Valid() bool {
	return c == TRC20 || c == BEP20
}

var (
	tronAddressRe = regexp.MustCompile(`^T[a-zA-Z0-9]{33}$`)
	bscAddressRe  = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// ValidateAddress checks that addr has the correct shape for chain c. It is
// a syntactic check only (base58/hex charset and length) — it does not
// verify a checksum or perform any network call.
func ValidateAddress(c Chain, addr string) bool {
	switch c {
	case TRC20:
		return tronAddressRe.MatchString(addr)
	case BEP20:
		return bscAddressRe.MatchString(addr)
	default:
		return false
	}
}

// RequiredConfirmations is the confirmation depth a deposit must reach
// before the chain watcher will record it against an escrow.
func RequiredConfirmations(c Chain) int64 {
	switch c {
	case TRC20:
		return 20
	case BEP20:
		return 12
	default:
		return 0
	}
}

// ScanIntervalSeconds is how often the watcher for c polls for new blocks
// under normal operation (outside of a deep rescan).
const ScanIntervalSeconds = 30

// RescanIntervalSeconds is how often the watcher performs a deep rescan
// that looks further back than its persisted cursor, to catch deposits
// whose confirmations matured during a gap in coverage.
const RescanIntervalSeconds = 300

// RescanDepthBlocks is how far behind the current chain tip a deep rescan
// starts from.
const RescanDepthBlocks = 5000

// NormalScanDepthBlocks is how far behind the current chain tip a normal
// scan is willing to start from when the persisted cursor is missing or
// very stale.
const NormalScanDepthBlocks = 500
