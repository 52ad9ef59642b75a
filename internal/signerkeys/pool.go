// Package signerkeys models the immutable address-to-private-key map a
// signer process holds for each chain. Unlike the teacher's HD-derivation
// services, this system never generates keys on demand: deposit addresses
// and the keys that control them are provisioned out of band and loaded
// once from an encrypted key file (internal/keyfile) at process start.
package signerkeys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/keyfile"
)

// Pool holds the address->private-key-hex map for a single chain.
type Pool struct {
	chain chains.Chain
	byKey map[string]string // address -> hex private key
}

// ErrAddressNotFound is returned by PrivateKey when the pool has no key
// for the requested address.
type ErrAddressNotFound struct {
	Address string
}

func (e *ErrAddressNotFound) Error() string {
	return fmt.Sprintf("signerkeys: no private key on file for address %q", e.Address)
}

// BuildPool derives each entry's address from its private key (rather than
// trusting a possibly-stale address column in the key file) and returns a
// Pool keyed by that derived address, mirroring the original
// build_address_key_map/select_private_key contract: address allocation
// and payout key selection share one single map per chain, never two.
func BuildPool(c chains.Chain, entries []keyfile.KeyEntry) (*Pool, error) {
	p := &Pool{chain: c, byKey: make(map[string]string, len(entries))}
	for _, e := range entries {
		addr, err := DeriveAddress(c, e.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("signerkeys: failed to derive address for key entry: %w", err)
		}
		p.byKey[addr] = e.KeyHex
	}
	return p, nil
}

// DeriveAddress computes the public deposit address for a hex-encoded
// secp256k1 private key, using the chain-appropriate derivation: Keccak256
// of the uncompressed public key for BEP20 (standard EVM derivation), and
// base58check over the same derivation prefixed with Tron's 0x41 address
// byte for TRC20.
func DeriveAddress(c chains.Chain, keyHex string) (string, error) {
	trimmed := strings.TrimPrefix(keyHex, "0x")
	if err := validateScalar(trimmed); err != nil {
		return "", fmt.Errorf("signerkeys: invalid private key: %w", err)
	}

	priv, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return "", fmt.Errorf("signerkeys: invalid private key: %w", err)
	}

	ethAddr := crypto.PubkeyToAddress(priv.PublicKey) // 20-byte EVM address

	switch c {
	case chains.BEP20:
		return ethAddr.Hex(), nil
	case chains.TRC20:
		tronAddr := append([]byte{0x41}, ethAddr.Bytes()...)
		checksum := doubleSHA256(tronAddr)
		withChecksum := append(tronAddr, checksum[:4]...)
		return base58.Encode(withChecksum), nil
	default:
		return "", fmt.Errorf("signerkeys: unsupported chain %q", c)
	}
}

// validateScalar rejects a key-file entry whose bytes do not form a valid
// secp256k1 private key scalar (zero, or >= curve order) before it is ever
// handed to go-ethereum's ECDSA derivation, using btcec's low-level
// ModNScalar rather than trusting HexToECDSA's own range check alone.
func validateScalar(keyHex string) error {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("not valid hex: %w", err)
	}
	var scalar btcec.ModNScalar
	overflow := scalar.SetByteSlice(raw)
	if overflow {
		return fmt.Errorf("scalar exceeds secp256k1 curve order")
	}
	if scalar.IsZero() {
		return fmt.Errorf("scalar is zero")
	}
	return nil
}

func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// PrivateKey looks up the private key controlling addr, mirroring
// select_private_key's KeyError-on-miss behavior.
func (p *Pool) PrivateKey(addr string) (string, error) {
	key, ok := p.byKey[addr]
	if !ok {
		return "", &ErrAddressNotFound{Address: addr}
	}
	return key, nil
}

// Addresses returns every deposit address this pool controls, in
// unspecified order.
func (p *Pool) Addresses() []string {
	out := make([]string, 0, len(p.byKey))
	for addr := range p.byKey {
		out = append(out, addr)
	}
	return out
}

// FirstUnused returns the first address in p not present in used,
// mirroring pick_address's "first address in the map not already assigned
// to an escrow" allocation policy. The original relies on Python dict
// insertion order; here any deterministic order is sufficient since the
// caller (a DB-locked allocation transaction) only needs *an* unused
// address, not a specific one.
func (p *Pool) FirstUnused(used map[string]bool) (string, bool) {
	for addr := range p.byKey {
		if !used[addr] {
			return addr, true
		}
	}
	return "", false
}
