// Package chanx provides the request-multiplexing primitive both protocol
// managers use to turn a single duplex byte stream into many concurrent
// in-flight calls: a map from correlation key to a capacity-1 reply
// channel, generalized from the host project's WebSocket transport's
// pendingResponses map so it serves KeePassRPC's string request ids and
// KeePassXC's reply nonces alike.
package chanx

import (
	"sync"

	"github.com/impl/karp/internal/errs"
)

// Pending tracks in-flight calls keyed by K (a JSON-RPC request id, a
// reply nonce, whatever correlates a request to its eventual response) and
// resolves each to a value of type V delivered exactly once.
type Pending[K comparable, V any] struct {
	mu      sync.Mutex
	waiters map[K]chan V
}

// NewPending creates an empty table.
func NewPending[K comparable, V any]() *Pending[K, V] {
	return &Pending[K, V]{waiters: make(map[K]chan V)}
}

// Register opens a capacity-1 reply slot for key, returning the channel a
// caller should block on. Register returns an error if key is already
// registered, since a duplicate correlation key indicates a protocol or
// request-id-generation bug rather than a recoverable condition.
func (p *Pending[K, V]) Register(key K) (<-chan V, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.waiters[key]; exists {
		return nil, errs.ErrInvalidNonce
	}
	ch := make(chan V, 1)
	p.waiters[key] = ch
	return ch, nil
}

// Resolve delivers value to the waiter registered under key, if any, and
// reports whether a waiter was found. A reply for an unregistered key is
// not an error at this layer — callers typically log and drop it, since it
// may be a duplicate or a reply to a call the requester already abandoned.
func (p *Pending[K, V]) Resolve(key K, value V) bool {
	p.mu.Lock()
	ch, ok := p.waiters[key]
	if ok {
		delete(p.waiters, key)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- value
	close(ch)
	return true
}

// Cancel removes and closes the waiter registered under key without
// delivering a value, used when a call is abandoned (context cancelled,
// timeout) so a later, now-unwanted reply doesn't panic on a closed
// channel send.
func (p *Pending[K, V]) Cancel(key K) {
	p.mu.Lock()
	ch, ok := p.waiters[key]
	if ok {
		delete(p.waiters, key)
	}
	p.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Len reports the number of calls currently in flight, used by tests and
// by shutdown paths that want to drain outstanding waiters.
func (p *Pending[K, V]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// DrainWith closes every outstanding waiter after delivering zero (the
// zero value of V) is not attempted; instead each waiter channel is closed
// so a receiver reading from it observes a closed-channel zero value
// immediately. Used when the underlying stream dies and every pending
// call must unblock rather than hang forever.
func (p *Pending[K, V]) DrainWith(fn func(K)) {
	p.mu.Lock()
	keys := make([]K, 0, len(p.waiters))
	for k, ch := range p.waiters {
		close(ch)
		keys = append(keys, k)
	}
	p.waiters = make(map[K]chan V)
	p.mu.Unlock()
	if fn != nil {
		for _, k := range keys {
			fn(k)
		}
	}
}
