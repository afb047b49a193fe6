package cryptoprim

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/rng"
)

// NonceSize is the width of a crypto_box nonce in bytes.
const NonceSize = 24

// Nonce is a crypto_box nonce.
type Nonce [NonceSize]byte

// RandomNonce draws a fresh nonce from the current randomness source.
func RandomNonce() (Nonce, error) {
	var n Nonce
	buf, err := rng.Bytes(NonceSize)
	if err != nil {
		return n, fmt.Errorf("generate nonce: %w", err)
	}
	copy(n[:], buf)
	return n, nil
}

// Next returns the expected reply nonce: this nonce plus one, as an
// unsigned little-endian integer, wrapping at all-ones.
func (n Nonce) Next() Nonce {
	var out Nonce
	copy(out[:], n[:])
	for i := 0; i < len(out); i++ {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

// String base64-encodes the nonce (standard encoding, as the wire expects).
func (n Nonce) String() string {
	return base64.StdEncoding.EncodeToString(n[:])
}

// ParseNonce decodes a base64 nonce.
func ParseNonce(s string) (Nonce, error) {
	var n Nonce
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return n, &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	if len(raw) != NonceSize {
		return n, &errs.Conversion{Kind: errs.ConversionRange, Message: fmt.Sprintf("nonce must be %d bytes, got %d", NonceSize, len(raw))}
	}
	copy(n[:], raw)
	return n, nil
}

// BoxKeyPair is a Curve25519 key pair used for the KeePassXC handshake and
// per-database association keys.
type BoxKeyPair struct {
	Public  [32]byte
	private [32]byte
}

// GenerateBoxKeyPair creates a fresh Curve25519 key pair via
// golang.org/x/crypto/nacl/box, the ecosystem's standard sealed-box
// primitive and a direct analogue of libsodium's crypto_box_keypair.
func GenerateBoxKeyPair() (*BoxKeyPair, error) {
	pub, priv, err := box.GenerateKey(rng.Reader())
	if err != nil {
		return nil, fmt.Errorf("generate box keypair: %w", err)
	}
	return &BoxKeyPair{Public: *pub, private: *priv}, nil
}

// Zero overwrites the private scalar with zero bytes.
func (kp *BoxKeyPair) Zero() {
	for i := range kp.private {
		kp.private[i] = 0
	}
}

// SecretKey is a persistable Curve25519 private scalar, the wire/storage
// representation of an association's identity key (BoxKeyPair only exposes
// its private half to code within this package).
type SecretKey [32]byte

// String base64-encodes the secret, the encoding KeePassXC's persisted
// association records use for id_key.
func (s SecretKey) String() string { return base64.StdEncoding.EncodeToString(s[:]) }

// MarshalText implements encoding.TextMarshaler.
func (s SecretKey) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseSecretKey decodes a base64-encoded Curve25519 private scalar.
func ParseSecretKey(text string) (SecretKey, error) {
	var s SecretKey
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return s, &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	if len(raw) != 32 {
		return s, &errs.Conversion{Kind: errs.ConversionKeyMaterialLength, Message: fmt.Sprintf("secret key must be 32 bytes, got %d", len(raw))}
	}
	copy(s[:], raw)
	return s, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SecretKey) UnmarshalText(text []byte) error {
	parsed, err := ParseSecretKey(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Zero overwrites the secret with zero bytes.
func (s *SecretKey) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// GenerateSecretKey draws a fresh Curve25519 private scalar.
func GenerateSecretKey() (SecretKey, error) {
	var s SecretKey
	buf, err := rng.Bytes(32)
	if err != nil {
		return s, fmt.Errorf("generate secret key: %w", err)
	}
	copy(s[:], buf)
	return s, nil
}

// BoxKeyPairFromSecret reconstructs a full BoxKeyPair (including its public
// half) from a previously persisted private scalar, via Curve25519's
// scalar base multiplication.
func BoxKeyPairFromSecret(secret SecretKey) *BoxKeyPair {
	var pub [32]byte
	priv := [32]byte(secret)
	curve25519.ScalarBaseMult(&pub, &priv)
	return &BoxKeyPair{Public: pub, private: priv}
}

// Secret returns the key pair's private scalar as a persistable SecretKey.
func (kp *BoxKeyPair) Secret() SecretKey { return SecretKey(kp.private) }

// SharedKey is the precomputed shared key for a BoxKeyPair/peer pair,
// suitable for repeated Seal/Open calls without recomputing the Curve25519
// exchange each time.
type SharedKey struct {
	key [32]byte
}

// Precompute derives the shared key between our key pair and a peer's
// public key.
func (kp *BoxKeyPair) Precompute(peerPublic [32]byte) *SharedKey {
	var shared SharedKey
	box.Precompute(&shared.key, &peerPublic, &kp.private)
	return &shared
}

// Zero overwrites the shared key with zero bytes.
func (s *SharedKey) Zero() {
	for i := range s.key {
		s.key[i] = 0
	}
}

// SealedJSON is the KeePassXC encrypted envelope: a base64 ciphertext
// alongside its base64 nonce.
type SealedJSON struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
}

// Seal serializes v to JSON and seals it under the shared key with a fresh
// nonce, returning the envelope and the nonce used (callers need the
// request nonce to compute the expected reply nonce).
func Seal(shared *SharedKey, v interface{}) (*SealedJSON, Nonce, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, Nonce{}, fmt.Errorf("marshal plaintext: %w", err)
	}
	nonce, err := RandomNonce()
	if err != nil {
		return nil, Nonce{}, err
	}
	sealed := box.SealAfterPrecomputation(nil, plaintext, (*[NonceSize]byte)(&nonce), &shared.key)
	return &SealedJSON{
		Message: base64.StdEncoding.EncodeToString(sealed),
		Nonce:   nonce.String(),
	}, nonce, nil
}

// Open decrypts env under the shared key and unmarshals into v.
func Open(shared *SharedKey, env *SealedJSON, v interface{}) error {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Message)
	if err != nil {
		return &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	nonce, err := ParseNonce(env.Nonce)
	if err != nil {
		return err
	}
	plaintext, ok := box.OpenAfterPrecomputation(nil, ciphertext, (*[NonceSize]byte)(&nonce), &shared.key)
	if !ok {
		return errs.ErrMessageAuthenticationFailure
	}
	return json.Unmarshal(plaintext, v)
}
