// Package cryptoprim implements the cryptographic primitives shared by both
// protocol managers: hashes and key material with their wire encodings,
// AES-256-CBC + HMAC-SHA1 encrypt-then-MAC framing for KeePassRPC, and
// Curve25519 sealed-box framing for KeePassXC.
package cryptoprim

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a 32-byte SHA-256 digest, serialized on the wire as a 64-char
// lowercase, zero-padded hex string (the reference implementation stores
// the bytes in little-endian order internally and formats through a
// big-integer; this type stores bytes in the order they print, which is
// observably identical since every construction and comparison here goes
// through the same encoding).
type Hash [32]byte

// SumHash returns the SHA-256 digest of data as a Hash.
func SumHash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// String renders the hash as 64 lowercase hex characters, zero-padded.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex string into a Hash, left-padding with zeroes if
// shorter than 64 characters (the wire permits leading zeroes to be
// trimmed) and rejecting inputs longer than 64 characters.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) > 64 {
		return Hash{}, fmt.Errorf("hash hex too long: %d characters", len(s))
	}
	padded := strings.Repeat("0", 64-len(s)) + s
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex: %w", err)
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Equal performs a constant-time comparison.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// Zero overwrites the hash's backing array with zero bytes.
func (h *Hash) Zero() {
	for i := range h {
		h[i] = 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
