package cryptoprim

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/rng"
)

// KeyMaterial is an arbitrary-width byte string serialized on the wire as
// uppercase hex (the SRP public values A and B). Go cannot parameterize an
// array type by a const the way the reference's KeyMaterial<const BYTES>
// does, so width is enforced at the call site instead of the type system.
type KeyMaterial []byte

// ParseKeyMaterial decodes a hex string (either case accepted on input,
// per the reference) into KeyMaterial.
func ParseKeyMaterial(s string) (KeyMaterial, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	return KeyMaterial(raw), nil
}

// String renders the key material as uppercase hex with no prefix.
func (k KeyMaterial) String() string {
	return strings.ToUpper(hex.EncodeToString(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k KeyMaterial) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *KeyMaterial) UnmarshalText(text []byte) error {
	parsed, err := ParseKeyMaterial(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Zero overwrites the backing slice with zero bytes.
func (k KeyMaterial) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Secret32 is a zeroizable 32-byte secret (an SRP private exponent, or a
// Curve25519 scalar before it is typed more specifically).
type Secret32 [32]byte

// RandomSecret32 draws 32 bytes from the current randomness source.
func RandomSecret32() (Secret32, error) {
	var s Secret32
	buf, err := rng.Bytes(32)
	if err != nil {
		return s, fmt.Errorf("generate secret: %w", err)
	}
	copy(s[:], buf)
	return s, nil
}

// Zero overwrites the secret with zero bytes.
func (s *Secret32) Zero() {
	for i := range s {
		s[i] = 0
	}
}
