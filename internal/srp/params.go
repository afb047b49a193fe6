package srp

import (
	"crypto/sha1" //nolint:gosec // wire-mandated SRP parameter, not a design choice
	"math/big"
)

// paramNBytes is the fixed 512-bit safe prime KeePassRPC uses as the SRP
// group modulus, reproduced verbatim from the reference implementation.
// These exact bytes are wire-critical.
var paramNBytes = []byte{
	0xd4, 0xc7, 0xf8, 0xa2, 0xb3, 0x2c, 0x11, 0xb8, 0xfb, 0xa9, 0x58, 0x1e, 0xc4, 0xba, 0x4f, 0x1b,
	0x04, 0x21, 0x56, 0x42, 0xef, 0x73, 0x55, 0xe3, 0x7c, 0x0f, 0xc0, 0x44, 0x3e, 0xf7, 0x56, 0xea,
	0x2c, 0x6b, 0x8e, 0xeb, 0x75, 0x5a, 0x1c, 0x72, 0x30, 0x27, 0x66, 0x3c, 0xaa, 0x26, 0x5e, 0xf7,
	0x85, 0xb8, 0xff, 0x6a, 0x9b, 0x35, 0x22, 0x7a, 0x52, 0xd8, 0x66, 0x33, 0xdb, 0xdf, 0xca, 0x43,
}

// ParamN is the SRP group modulus N.
var ParamN = new(big.Int).SetBytes(paramNBytes)

// ParamGenerator is the SRP group generator g.
const ParamGenerator = 2

// ParamK is the SRP multiplier k = SHA1(N || pad(g, len(N))), computed once
// at package init since it depends only on the fixed group parameters.
var ParamK = computeK()

func computeK() *big.Int {
	gBytes := big.NewInt(ParamGenerator).Bytes()
	padded := make([]byte, len(paramNBytes))
	copy(padded[len(padded)-len(gBytes):], gBytes)

	h := sha1.New() //nolint:gosec
	h.Write(paramNBytes)
	h.Write(padded)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// nLen is N's width in bytes, used to render A as fixed-width key
// material on the wire.
const nLen = 64
