// Package idgen generates the random identifiers used for every row this
// service creates (escrows, disputes, reviews, audit entries). Adapted from
// the teacher's GenerateSecureUUID: a crypto/rand-backed UUIDv4.
package idgen

import (
	"crypto/rand"
	"fmt"
)

// New returns a fresh, cryptographically random UUIDv4 string.
func New() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; there is no safe fallback for an identifier that must
		// be globally unique.
		panic(fmt.Sprintf("idgen: failed to read random bytes: %v", err))
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		buf[0:4], buf[4:6], buf[6:8], buf[8:10], buf[10:16])
}

// RoomCode returns a fresh human-readable room code in the format
// "TR-XXXXXX": a fixed prefix followed by 6 uppercase hex digits drawn
// from a crypto/rand source, short enough to read aloud in a chat thread.
func RoomCode() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("idgen: failed to read random bytes: %v", err))
	}
	return fmt.Sprintf("TR-%02X%02X%02X", buf[0], buf[1], buf[2])
}
