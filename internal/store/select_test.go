package store_test

import (
	"path/filepath"
	"testing"

	"github.com/impl/karp/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestSelectFallsBackToFileWhenPathGiven(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	got := store.Select[identifiedRecord](path)

	assert.True(t, got.IsPersistent())
}

func TestSelectFallsBackToMemoryWhenNoPath(t *testing.T) {
	got := store.Select[identifiedRecord]("")

	assert.False(t, got.IsPersistent())
}
