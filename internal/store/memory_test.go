package store_test

import (
	"testing"

	"github.com/impl/karp/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetMissing(t *testing.T) {
	m := store.NewMemory[identifiedRecord]()

	_, ok, err := m.Get()

	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, m.IsPersistent())
}

func TestMemoryUpdateThenGet(t *testing.T) {
	m := store.NewMemory[identifiedRecord]()
	require.NoError(t, m.Update(identifiedRecord{ID: "alice", Value: "first"}))

	got, ok, err := m.Get()

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", got.Value)
}

func TestMemoryClear(t *testing.T) {
	m := store.NewMemory[identifiedRecord]()
	require.NoError(t, m.Update(identifiedRecord{ID: "alice", Value: "first"}))

	require.NoError(t, m.Clear())

	_, ok, err := m.Get()
	require.NoError(t, err)
	assert.False(t, ok)
}
