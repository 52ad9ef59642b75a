package signerkeys

import (
	"testing"

	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/keyfile"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestDeriveAddressBEP20LooksLikeHexAddress(t *testing.T) {
	addr, err := DeriveAddress(chains.BEP20, testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	if !chains.ValidateAddress(chains.BEP20, addr) {
		t.Errorf("derived address %q does not match BEP20 shape", addr)
	}
}

func TestDeriveAddressTRC20LooksLikeTronAddress(t *testing.T) {
	addr, err := DeriveAddress(chains.TRC20, testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	if !chains.ValidateAddress(chains.TRC20, addr) {
		t.Errorf("derived address %q does not match TRC20 shape", addr)
	}
}

func TestDeriveAddressRejectsZeroScalar(t *testing.T) {
	zeroKeyHex := "0000000000000000000000000000000000000000000000000000000000000000"
	if _, err := DeriveAddress(chains.BEP20, zeroKeyHex); err == nil {
		t.Error("expected zero private key scalar to be rejected")
	}
}

func TestDeriveAddressRejectsOverflowingScalar(t *testing.T) {
	// secp256k1's order N is just under 2^256; all-0xff overflows it.
	overflowKeyHex := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	if _, err := DeriveAddress(chains.BEP20, overflowKeyHex); err == nil {
		t.Error("expected out-of-range private key scalar to be rejected")
	}
}

func TestBuildPoolAndLookup(t *testing.T) {
	pool, err := BuildPool(chains.BEP20, []keyfile.KeyEntry{{KeyHex: testKeyHex}})
	if err != nil {
		t.Fatal(err)
	}
	addrs := pool.Addresses()
	if len(addrs) != 1 {
		t.Fatalf("expected 1 address, got %d", len(addrs))
	}
	if _, err := pool.PrivateKey(addrs[0]); err != nil {
		t.Errorf("expected key lookup to succeed: %v", err)
	}
	if _, err := pool.PrivateKey("0xnotinthepool"); err == nil {
		t.Error("expected lookup for unknown address to fail")
	}
}

func TestFirstUnused(t *testing.T) {
	pool, err := BuildPool(chains.BEP20, []keyfile.KeyEntry{{KeyHex: testKeyHex}})
	if err != nil {
		t.Fatal(err)
	}
	addr := pool.Addresses()[0]

	got, ok := pool.FirstUnused(map[string]bool{})
	if !ok || got != addr {
		t.Errorf("FirstUnused() = (%q, %v), want (%q, true)", got, ok, addr)
	}

	_, ok = pool.FirstUnused(map[string]bool{addr: true})
	if ok {
		t.Error("expected no unused address once all are marked used")
	}
}
