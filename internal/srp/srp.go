// Package srp implements the SRP-6a mutual-authentication state machine
// KeePassRPC uses: Init → Computed → Authenticated, with fixed group
// parameters (N, g=2, k=SHA1(N||g)). States are distinct Go types so an
// invalid transition (e.g. computing evidence before a public key exists)
// fails to compile, the idiomatic substitute for the reference's sealed/
// phantom-typed state machine.
package srp

import (
	"crypto/sha256"
	"crypto/subtle"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
)

// Init holds the client's ephemeral private exponent and public value,
// generated fresh for a single authentication attempt.
type Init struct {
	identifier string
	a          *big.Int
	A          *big.Int
}

// New generates a is a random 256-bit exponent and computes A = g^a mod N,
// retrying if A mod N == 0 (the reference's own retry contract). If
// identifier is empty, a fresh random UUID-shaped identifier is assigned.
func New(identifier string) (*Init, error) {
	if identifier == "" {
		var err error
		identifier, err = randomIdentifier()
		if err != nil {
			return nil, err
		}
	}

	for {
		secret, err := cryptoprim.RandomSecret32()
		if err != nil {
			return nil, err
		}
		a := new(big.Int).SetBytes(secret[:])
		secret.Zero()

		A := new(big.Int).Exp(big.NewInt(ParamGenerator), a, ParamN)
		if new(big.Int).Mod(A, ParamN).Sign() == 0 {
			continue
		}
		return &Init{identifier: identifier, a: a, A: A}, nil
	}
}

// Identifier returns the identifier committed to this attempt.
func (s *Init) Identifier() string { return s.identifier }

// PublicKey renders A as fixed-width key material for the wire.
func (s *Init) PublicKey() cryptoprim.KeyMaterial {
	return fixedWidth(s.A, nLen)
}

// Computed holds the derived shared secret and both parties' evidence
// values, ready for the client to send M_c and verify a received M_s.
type Computed struct {
	identifier string
	A          *big.Int
	B          *big.Int
	mc         cryptoprim.Hash
	ms         cryptoprim.Hash
	k          *big.Int // session secret K as a big integer
}

// Compute derives u, x, K, M_c, and M_s from the server's public value B,
// the account salt, and the user's password. The reference hashes the
// ASCII hex-string renderings of A, B, and K, not their binary encodings:
// u = SHA256(hex(A)||hex(B)), x = SHA256(salt||password),
// K = (B - k*g^x)^(a+u*x) mod N, M_c = SHA256(hex(A)||hex(B)||hex(K)),
// M_s = SHA256(hex(A)||hex(M_c)||hex(K)). hex(A), hex(B), and hex(K) are
// uppercase and unpadded (cryptoprim.KeyMaterial's convention); hex(M_c)
// is lowercase and zero-padded to 64 characters (cryptoprim.Hash's own
// String method already renders it that way).
func (s *Init) Compute(bHex string, salt string, password string) (*Computed, error) {
	B, ok := new(big.Int).SetString(bHex, 16)
	if !ok {
		return nil, &errs.Conversion{Kind: errs.ConversionNumericalRepresentation, Message: "invalid B hex"}
	}
	if new(big.Int).Mod(B, ParamN).Sign() == 0 {
		return nil, &errs.Conversion{Kind: errs.ConversionRange, Message: "B mod N == 0"}
	}

	aStr := hexUpper(s.A)
	bStr := hexUpper(B)
	u := new(big.Int).SetBytes(sum256([]byte(aStr), []byte(bStr)))

	x := new(big.Int).SetBytes(sum256([]byte(salt), []byte(password)))

	gx := new(big.Int).Exp(big.NewInt(ParamGenerator), x, ParamN)
	kgx := new(big.Int).Mod(new(big.Int).Mul(ParamK, gx), ParamN)
	base := new(big.Int).Mod(new(big.Int).Sub(B, kgx), ParamN)
	if base.Sign() < 0 {
		base.Add(base, ParamN)
	}
	exponent := new(big.Int).Add(s.a, new(big.Int).Mul(u, x))
	K := new(big.Int).Exp(base, exponent, ParamN)

	kStr := hexUpper(K)
	mc := cryptoprim.SumHash([]byte(aStr + bStr + kStr))
	ms := cryptoprim.SumHash([]byte(aStr + mc.String() + kStr))

	return &Computed{identifier: s.identifier, A: s.A, B: B, mc: mc, ms: ms, k: K}, nil
}

// Identifier returns the identifier carried over from Init.
func (s *Computed) Identifier() string { return s.identifier }

// ClientEvidence returns M_c, to be sent to the server.
func (s *Computed) ClientEvidence() cryptoprim.Hash { return s.mc }

// Authenticated holds the final session key, derived only once the
// server's evidence has been verified.
type Authenticated struct {
	identifier string
	sessionKey cryptoprim.Hash
}

// Authenticate verifies the server's evidence M_s against the expected
// value in constant time and, on success, derives the session key as
// SHA256(hex(K)) using the same uppercase, unpadded hex convention as
// every other use of K in this exchange — not a zero-padded rendering,
// which would hash to a different key and silently desync from the
// server's own derivation.
func (s *Computed) Authenticate(serverEvidence cryptoprim.Hash) (*Authenticated, error) {
	if subtle.ConstantTimeCompare(s.ms[:], serverEvidence[:]) != 1 {
		return nil, errs.ErrServerProofMismatch
	}
	sessionKey := cryptoprim.SumHash([]byte(hexUpper(s.k)))
	return &Authenticated{identifier: s.identifier, sessionKey: sessionKey}, nil
}

// Identifier returns the identifier carried over from Computed.
func (s *Authenticated) Identifier() string { return s.identifier }

// SessionKey returns the derived 32-byte session key.
func (s *Authenticated) SessionKey() cryptoprim.Hash { return s.sessionKey }

// hexUpper renders n the way the reference's KeyMaterial type serializes
// for hashing and for the wire: uppercase hex digits, no leading-zero
// padding. This is distinct from fixedWidth, which exists only to encode
// A into a fixed-size wire field; hashing must use this unpadded form so
// the digest matches whatever canonical value a peer reconstructs after
// parsing its own copy of the same number.
func hexUpper(n *big.Int) string {
	return strings.ToUpper(n.Text(16))
}

func fixedWidth(n *big.Int, width int) []byte {
	raw := n.Bytes()
	if len(raw) >= width {
		return raw[len(raw)-width:]
	}
	out := make([]byte, width)
	copy(out[width-len(raw):], raw)
	return out
}

func sum256(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func randomIdentifier() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
