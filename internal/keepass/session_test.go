package keepass

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impl/karp/internal/cryptoprim"
)

func TestSessionDataRoundtripWithKey(t *testing.T) {
	key := cryptoprim.SumHash([]byte("session key"))
	in := SessionData{Identifier: "abc-123", SessionKey: &key}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out SessionData
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, in.Identifier, out.Identifier)
	require.NotNil(t, out.SessionKey)
	assert.True(t, key.Equal(*out.SessionKey))
}

func TestSessionDataRoundtripWithoutKey(t *testing.T) {
	in := SessionData{Identifier: "abc-123"}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"session_key":null`)

	var out SessionData
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Identifier, out.Identifier)
	assert.Nil(t, out.SessionKey)
}

func TestSessionDataStoreIdentifier(t *testing.T) {
	s := SessionData{Identifier: "xyz"}
	assert.Equal(t, "xyz", s.StoreIdentifier())
}
