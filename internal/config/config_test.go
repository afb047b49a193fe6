package config_test

import (
	"testing"

	"github.com/impl/karp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.Flags{})

	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:12546", cfg.URL.String())
	assert.False(t, cfg.NoCacheSessionKey)
	assert.Empty(t, cfg.PinentryProgram)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("KARP_URL", "ws://example.invalid:1234")
	t.Setenv("KARP_NO_CACHE_SESSION_KEY", "true")

	cfg, err := config.Load(config.Flags{URL: "file:///run/keepassxc.sock"})

	require.NoError(t, err)
	assert.Equal(t, "file:///run/keepassxc.sock", cfg.URL.String())
	assert.True(t, cfg.NoCacheSessionKey, "env var alone must still set the flag when the CLI flag is left at its zero value")
}

func TestLoadRejectsInvalidURL(t *testing.T) {
	_, err := config.Load(config.Flags{URL: "://not-a-url"})

	require.Error(t, err)
}

func TestLoadPinentryFromEnv(t *testing.T) {
	t.Setenv("KARP_PINENTRY_PROGRAM", "/usr/bin/pinentry-gtk")

	cfg, err := config.Load(config.Flags{})

	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/pinentry-gtk", cfg.PinentryProgram)
}
