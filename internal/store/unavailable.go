package store

import "github.com/impl/karp/internal/errs"

// Unavailable is a Store[T] that always fails, standing in for an OS
// keyring backend (Secret Service, Keychain) this build was not linked
// against. It exists so the documented backend fallback order —
// secret-service/keychain, then file, then memory — is a real chain of
// Store[T] values karp tries in sequence, rather than an order that exists
// only as a comment because the first link was never built.
type Unavailable[T any] struct {
	Reason string
}

func (u *Unavailable[T]) Get() (T, bool, error) {
	var zero T
	return zero, false, u.err()
}

func (u *Unavailable[T]) Update(T) error { return u.err() }

func (u *Unavailable[T]) Clear() error { return u.err() }

func (u *Unavailable[T]) IsPersistent() bool { return false }

func (u *Unavailable[T]) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "no OS keyring backend is available on this platform"
	}
	return &errs.Storage{Message: reason}
}
