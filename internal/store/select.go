package store

import "github.com/impl/karp/internal/metrics"

// Select tries the session-store backend chain in order — an OS keyring
// (Secret Service / Keychain, represented by Unavailable until this build
// is linked against one), a JSON file at path, then an in-memory store —
// and returns the first usable one, recording which link of the chain was
// used.
//
// Only the keyring is probed with a Get. The file store is not probed (a
// missing file just means "nothing stored yet"): it is returned whenever
// path is non-empty, and Memory is returned only when path is empty.
func Select[T any](path string) Store[T] {
	keyring := &Unavailable[T]{}
	if _, _, err := keyring.Get(); err == nil {
		metrics.StorageBackendSelected.WithLabelValues("keyring", "false").Inc()
		return keyring
	}

	if path != "" {
		metrics.StorageBackendSelected.WithLabelValues("file", "true").Inc()
		return NewFile[T](path)
	}

	metrics.StorageBackendSelected.WithLabelValues("memory", "true").Inc()
	return NewMemory[T]()
}
