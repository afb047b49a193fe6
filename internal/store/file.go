package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	internalerrs "github.com/impl/karp/internal/errs"
)

// File is a Store[T] backed by a single JSON file, written atomically via a
// temp-file-plus-rename so a crash mid-write never leaves a torn session
// record behind.
type File[T any] struct {
	path string
}

// NewFile returns a File store rooted at path. The parent directory is
// created on first Update, not here, so constructing a File store never
// touches the filesystem.
func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// DefaultSessionDir returns $XDG_CONFIG_HOME/karp (or the platform
// equivalent via os.UserConfigDir), the directory karp's CLI wires the
// file store to by default.
func DefaultSessionDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "karp"), nil
}

// DefaultSessionPath returns DefaultSessionDir joined with <name>.json.
func DefaultSessionPath(name string) (string, error) {
	dir, err := DefaultSessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

func (f *File[T]) Get() (T, bool, error) {
	var zero T
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, &internalerrs.Storage{Message: "reading session file: " + err.Error()}
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, &internalerrs.Storage{Message: "decoding session file: " + err.Error()}
	}
	return value, true, nil
}

func (f *File[T]) Update(value T) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return &internalerrs.Storage{Message: "creating session directory: " + err.Error()}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return &internalerrs.Storage{Message: "encoding session file: " + err.Error()}
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.tmp")
	if err != nil {
		return &internalerrs.Storage{Message: "creating temp session file: " + err.Error()}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return &internalerrs.Storage{Message: "writing temp session file: " + err.Error()}
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return &internalerrs.Storage{Message: "setting session file permissions: " + err.Error()}
	}
	if err := tmp.Close(); err != nil {
		return &internalerrs.Storage{Message: "closing temp session file: " + err.Error()}
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return &internalerrs.Storage{Message: "renaming session file into place: " + err.Error()}
	}
	return nil
}

func (f *File[T]) Clear() error {
	err := os.Remove(f.path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return &internalerrs.Storage{Message: "removing session file: " + err.Error()}
}

func (f *File[T]) IsPersistent() bool { return true }
