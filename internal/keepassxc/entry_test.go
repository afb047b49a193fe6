package keepassxc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impl/karp/client"
)

func TestGetLoginsEntryToEntryMapsFields(t *testing.T) {
	e := getLoginsEntry{
		Login:    "alice",
		Password: "hunter2",
		Name:     "Example",
		UUID:     "uuid-1",
		Group:    "Work/Email",
	}

	entry := e.toEntry()
	assert.Equal(t, "uuid-1", entry.ID)
	assert.Equal(t, "Work/Email", entry.Parent)
	assert.Equal(t, "Example", entry.Title)
	require.Len(t, entry.Fields, 2)

	username, ok := entry.Field(client.FormFieldUsername)
	require.True(t, ok)
	assert.Equal(t, "alice", username.Value)

	password, ok := entry.Field(client.FormFieldPassword)
	require.True(t, ok)
	assert.Equal(t, "hunter2", password.Value)
}

func TestKeyBase64Roundtrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}

	encoded := base64Key(key)
	decoded, err := parseKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	_, err := parseKey("AAAA")
	assert.Error(t, err)
}
