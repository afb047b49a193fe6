package store_test

import (
	"path/filepath"
	"testing"

	"github.com/impl/karp/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileGetMissingIsNotAnError(t *testing.T) {
	f := store.NewFile[identifiedRecord](filepath.Join(t.TempDir(), "session.json"))

	_, ok, err := f.Get()

	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.IsPersistent())
}

func TestFileUpdateThenGetRoundtrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	f := store.NewFile[identifiedRecord](path)

	require.NoError(t, f.Update(identifiedRecord{ID: "alice", Value: "first"}))

	got, ok, err := f.Get()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, identifiedRecord{ID: "alice", Value: "first"}, got)
}

func TestFileClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	f := store.NewFile[identifiedRecord](path)
	require.NoError(t, f.Update(identifiedRecord{ID: "alice", Value: "first"}))

	require.NoError(t, f.Clear())

	_, ok, err := f.Get()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileClearOnMissingFileIsNotAnError(t *testing.T) {
	f := store.NewFile[identifiedRecord](filepath.Join(t.TempDir(), "session.json"))

	assert.NoError(t, f.Clear())
}
