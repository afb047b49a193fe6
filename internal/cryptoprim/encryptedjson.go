package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // wire-mandated, not a design choice
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/rng"
)

// EncryptedJSON is the KeePassRPC encrypt-then-MAC envelope: an
// AES-256-CBC ciphertext and its IV, base64-encoded, authenticated by an
// HMAC-SHA1 computed over SHA1(key) as key material rather than a keyed
// HMAC over the session key directly. This non-standard construction is
// wire-mandated and must be preserved exactly.
type EncryptedJSON struct {
	Message string `json:"message"`
	IV      string `json:"iv"`
	HMAC    string `json:"hmac"`
}

// computeMAC reproduces the reference's compute_mac: SHA1(SHA1(key) ||
// ciphertext || iv). It is deliberately not a keyed HMAC over the raw
// session key — the key material fed to HMAC is itself a SHA-1 digest of
// the session key.
func computeMAC(key, ciphertext, iv []byte) []byte {
	keyDigest := sha1.Sum(key) //nolint:gosec
	mac := hmac.New(sha1.New, keyDigest[:])
	mac.Write(ciphertext)
	mac.Write(iv)
	return mac.Sum(nil)
}

// EncryptJSON serializes v, encrypts it with AES-256-CBC under a random IV,
// and returns the envelope with its MAC.
func EncryptJSON(key Hash, v interface{}) (*EncryptedJSON, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal plaintext: %w", err)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rng.Reader(), iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := computeMAC(key[:], ciphertext, iv)

	return &EncryptedJSON{
		Message: base64.StdEncoding.EncodeToString(ciphertext),
		IV:      base64.StdEncoding.EncodeToString(iv),
		HMAC:    base64.StdEncoding.EncodeToString(mac),
	}, nil
}

// DecryptJSON verifies the envelope's MAC in constant time, then decrypts
// and unmarshals into v. A MAC mismatch yields
// errs.ErrMessageAuthenticationFailure before any decryption is attempted.
func DecryptJSON(key Hash, env *EncryptedJSON, v interface{}) error {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Message)
	if err != nil {
		return &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	mac, err := base64.StdEncoding.DecodeString(env.HMAC)
	if err != nil {
		return &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}

	expected := computeMAC(key[:], ciphertext, iv)
	if subtle.ConstantTimeCompare(mac, expected) != 1 {
		return errs.ErrMessageAuthenticationFailure
	}

	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return &errs.Conversion{Kind: errs.ConversionPadding, Message: "ciphertext is not block-aligned"}
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("new cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return &errs.Conversion{Kind: errs.ConversionPadding, Message: err.Error()}
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal plaintext: %w", err)
	}
	return nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
