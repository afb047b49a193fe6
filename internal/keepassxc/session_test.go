package keepassxc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impl/karp/internal/cryptoprim"
)

func TestSessionDataRoundtrip(t *testing.T) {
	secret, err := cryptoprim.GenerateSecretKey()
	require.NoError(t, err)

	in := SessionData{Keys: map[string]AssocKey{
		"deadbeef": {ID: "karp-client", IDKey: secret},
	}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out SessionData
	require.NoError(t, json.Unmarshal(raw, &out))

	require.Contains(t, out.Keys, "deadbeef")
	assert.Equal(t, "karp-client", out.Keys["deadbeef"].ID)
	assert.Equal(t, secret, out.Keys["deadbeef"].IDKey)
}

func TestSessionDataRoundtripEmpty(t *testing.T) {
	in := SessionData{}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out SessionData
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Empty(t, out.Keys)
}
