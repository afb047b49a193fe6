// Package config parses and validates karp's process-wide configuration:
// the connection URL, session-key caching policy, and pinentry program
// path. Validation errors are collected rather than returned on the first
// failure, the same aggregate-then-report approach the host project's
// config loader uses for its much larger field set.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is karp's fully-resolved process configuration.
type Config struct {
	URL               *url.URL
	NoCacheSessionKey bool
	PinentryProgram   string
	MetricsAddr       string
}

const defaultURL = "ws://127.0.0.1:12546"

// Flags mirrors the subset of Config that the CLI layer overlays on top of
// environment defaults; zero values mean "not set on the command line".
type Flags struct {
	URL               string
	NoCacheSessionKey bool
	PinentryProgram   string
}

// Load resolves configuration from environment variables, then applies any
// flags the CLI parsed, and validates the result.
func Load(flags Flags) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var errs []string

	rawURL := os.Getenv("KARP_URL")
	if rawURL == "" {
		rawURL = defaultURL
	}
	if flags.URL != "" {
		rawURL = flags.URL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid URL %q: %v", rawURL, err))
	}

	noCacheSessionKey := flags.NoCacheSessionKey
	if !noCacheSessionKey {
		if v, ok := os.LookupEnv("KARP_NO_CACHE_SESSION_KEY"); ok {
			noCacheSessionKey, _ = strconv.ParseBool(v)
		}
	}

	pinentry := flags.PinentryProgram
	if pinentry == "" {
		pinentry = os.Getenv("KARP_PINENTRY_PROGRAM")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return &Config{
		URL:               parsed,
		NoCacheSessionKey: noCacheSessionKey,
		PinentryProgram:   pinentry,
		MetricsAddr:       os.Getenv("KARP_METRICS_ADDR"),
	}, nil
}
