// Package keyfile implements the encrypted-at-rest key file format used to
// distribute signer private keys to the signer process: an Argon2id-derived
// key wraps an AES-256-GCM envelope around a JSON payload of hex-encoded
// private keys, one per deposit address the signer controls.
package keyfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, matching OWASP's current recommendation for
// interactive key derivation.
const (
	argon2Time    = 4
	argon2Memory  = 256 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32 // 256-bit key for AES-256
	argon2SaltLen = 16
	aesNonceLen   = 12
)

// Envelope is the on-disk encrypted key file: a random salt and nonce next
// to the AEAD-sealed ciphertext (which includes its own 16-byte auth tag).
type Envelope struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyEntry pairs a deposit address with the hex-encoded private key that
// controls it, the unit the plaintext JSON payload is a list of.
type KeyEntry struct {
	Address string `json:"address"`
	KeyHex  string `json:"key_hex"`
}

// Encrypt seals entries under passphrase, returning a JSON-serializable
// Envelope suitable for writing to disk.
func Encrypt(entries []KeyEntry, passphrase string) (*Envelope, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keyfile: failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to create GCM: %w", err)
	}

	nonce := make([]byte, aesNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keyfile: failed to generate nonce: %w", err)
	}

	plaintext, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to marshal entries: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	clear(plaintext)

	return &Envelope{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt opens env under passphrase and returns the list of key entries.
func Decrypt(env *Envelope, passphrase string) ([]KeyEntry, error) {
	if env == nil {
		return nil, errors.New("keyfile: envelope is nil")
	}
	if len(env.Salt) != argon2SaltLen {
		return nil, fmt.Errorf("keyfile: invalid salt length %d", len(env.Salt))
	}
	if len(env.Nonce) != aesNonceLen {
		return nil, fmt.Errorf("keyfile: invalid nonce length %d", len(env.Nonce))
	}

	key := argon2.IDKey([]byte(passphrase), env.Salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, errors.New("keyfile: authentication failed, wrong passphrase or corrupted file")
	}
	defer clear(plaintext)

	var entries []KeyEntry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("keyfile: failed to unmarshal entries: %w", err)
	}
	return entries, nil
}

// clear overwrites b with zeros; best-effort hygiene for secret material
// that is about to go out of scope.
func clear(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
