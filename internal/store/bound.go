package store

import (
	"crypto/subtle"

	"github.com/impl/karp/internal/errs"
)

// Identified is implemented by values that carry the identifier a Bound
// store pins itself to (KeePassRPC's SRP identifier; the KeePassXC session
// store is not bound).
type Identified interface {
	StoreIdentifier() string
}

// Bound decorates a Store[T] so that once a value has been committed under
// one identifier, an Update carrying a different identifier is rejected
// rather than silently overwriting a session that belongs to someone else.
// The identifier comparison runs in constant time. Only Update checks the
// identifier; Get, Clear and IsPersistent pass straight through.
type Bound[T Identified] struct {
	inner Store[T]
}

// NewBound wraps inner in an identifier-checking decorator.
func NewBound[T Identified](inner Store[T]) *Bound[T] {
	return &Bound[T]{inner: inner}
}

func (b *Bound[T]) Get() (T, bool, error) { return b.inner.Get() }

// Update accepts the value unconditionally if the store is currently empty,
// or if the value's identifier matches the one already committed.
// Otherwise it returns errs.ErrStorageConflict and leaves the store
// untouched.
func (b *Bound[T]) Update(value T) error {
	existing, ok, err := b.inner.Get()
	if err != nil {
		return err
	}
	if ok && subtle.ConstantTimeCompare([]byte(existing.StoreIdentifier()), []byte(value.StoreIdentifier())) != 1 {
		return errs.ErrStorageConflict
	}
	return b.inner.Update(value)
}

func (b *Bound[T]) Clear() error { return b.inner.Clear() }

func (b *Bound[T]) IsPersistent() bool { return b.inner.IsPersistent() }
