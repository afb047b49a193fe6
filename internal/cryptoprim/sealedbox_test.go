package cryptoprim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedBoxRoundtrip(t *testing.T) {
	client, err := GenerateBoxKeyPair()
	require.NoError(t, err)
	server, err := GenerateBoxKeyPair()
	require.NoError(t, err)

	clientShared := client.Precompute(server.Public)
	serverShared := server.Precompute(client.Public)

	type msg struct {
		Value string `json:"value"`
	}
	sealed, _, err := Seal(clientShared, msg{Value: "hello"})
	require.NoError(t, err)

	var out msg
	require.NoError(t, Open(serverShared, sealed, &out))
	assert.Equal(t, "hello", out.Value)
}

func TestSealedBoxRejectsWrongNonce(t *testing.T) {
	client, err := GenerateBoxKeyPair()
	require.NoError(t, err)
	server, err := GenerateBoxKeyPair()
	require.NoError(t, err)

	clientShared := client.Precompute(server.Public)
	serverShared := server.Precompute(client.Public)

	sealed, _, err := Seal(clientShared, map[string]string{"value": "hello"})
	require.NoError(t, err)

	other, err := RandomNonce()
	require.NoError(t, err)
	sealed.Nonce = other.String()

	var out map[string]string
	err = Open(serverShared, sealed, &out)
	assert.Error(t, err)
}

func TestNonceIncrement(t *testing.T) {
	var n Nonce
	next := n.Next()
	assert.Equal(t, Nonce{1}, next)
}

func TestBoxKeyPairFromSecretReconstructsPublicKey(t *testing.T) {
	kp, err := GenerateBoxKeyPair()
	require.NoError(t, err)

	reconstructed := BoxKeyPairFromSecret(kp.Secret())
	assert.Equal(t, kp.Public, reconstructed.Public)
}

func TestSecretKeyRoundtrip(t *testing.T) {
	secret, err := GenerateSecretKey()
	require.NoError(t, err)

	parsed, err := ParseSecretKey(secret.String())
	require.NoError(t, err)
	assert.Equal(t, secret, parsed)
}

func TestNonceIncrementWraps(t *testing.T) {
	var n Nonce
	for i := range n {
		n[i] = 0xff
	}
	next := n.Next()
	assert.Equal(t, Nonce{}, next)
}
