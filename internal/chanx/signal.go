package chanx

import "sync"

// Signal is a fan-out broadcast point for out-of-band server pushes that
// have no correlation id to multiplex on — KeePassXC's database-locked/
// unlocked notifications. Each
// subscriber gets its own buffered channel so a slow reader cannot stall
// delivery to the others.
type Signal[V any] struct {
	mu   sync.Mutex
	subs map[chan V]struct{}
}

// NewSignal creates an empty broadcast point.
func NewSignal[V any]() *Signal[V] {
	return &Signal[V]{subs: make(map[chan V]struct{})}
}

// Subscribe returns a channel that receives every value broadcast from
// this point onward, and an unsubscribe function the caller must call when
// done to release the channel.
func (s *Signal[V]) Subscribe() (<-chan V, func()) {
	ch := make(chan V, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// Broadcast delivers value to every current subscriber. A subscriber whose
// buffer is full has the value dropped for it rather than blocking the
// broadcaster.
func (s *Signal[V]) Broadcast(value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- value:
		default:
		}
	}
}

// Close unsubscribes and closes every outstanding subscriber channel.
func (s *Signal[V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan V]struct{})
}
