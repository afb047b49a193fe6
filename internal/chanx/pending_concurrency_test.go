package chanx

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestPendingConcurrentRegisterResolveCancel drives many goroutines through
// Register/Resolve/Cancel at once under -race. Pending's map access is
// unsynchronized from the caller's point of view only in the sense that a
// single table is meant to be shared by one reader goroutine (resolving
// replies as they arrive) and many caller goroutines (registering and
// cancelling their own calls); the mutex inside Pending is what actually
// makes that safe, and this test exists to catch a regression that removes
// or narrows it.
func TestPendingConcurrentRegisterResolveCancel(t *testing.T) {
	const keys = 500
	p := NewPending[int, int]()

	var resolved, cancelled, delivered int64
	var wg sync.WaitGroup

	for k := 0; k < keys; k++ {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := p.Register(k)
			if err != nil {
				return
			}
			if k%2 == 0 {
				atomic.AddInt64(&resolved, 1)
				go func() { p.Resolve(k, k*2) }()
			} else {
				atomic.AddInt64(&cancelled, 1)
				go p.Cancel(k)
			}

			select {
			case v, ok := <-ch:
				if ok {
					assert.Equal(t, k*2, v)
					atomic.AddInt64(&delivered, 1)
				}
			case <-time.After(5 * time.Second):
				t.Errorf("key %d never unblocked", k)
			}
		}()
	}

	wg.Wait()

	assert.EqualValues(t, keys/2, resolved)
	assert.EqualValues(t, keys/2, cancelled)
	assert.EqualValues(t, keys/2, delivered)
	assert.Equal(t, 0, p.Len())
}

// TestPendingConcurrentDuplicateRegisterOnlyOneWins hammers the same key
// from many goroutines; exactly one Register must succeed, the rest must
// observe the duplicate-key error, and the eventual Resolve must reach the
// single winner.
func TestPendingConcurrentDuplicateRegisterOnlyOneWins(t *testing.T) {
	const attempts = 200
	p := NewPending[string, int]()

	var successes int64
	var wg sync.WaitGroup
	var winner <-chan int
	var winnerMu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := p.Register("shared")
			if err != nil {
				return
			}
			atomic.AddInt64(&successes, 1)
			winnerMu.Lock()
			winner = ch
			winnerMu.Unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.True(t, p.Resolve("shared", 42))

	select {
	case v := <-winner:
		assert.Equal(t, 42, v)
	case <-time.After(5 * time.Second):
		t.Fatal("winner channel never received its value")
	}
}

// TestPendingConcurrentDrainRaceWithRegister confirms DrainWith running
// concurrently with a stream of fresh Register calls never leaves the table
// in a state where a caller blocks forever: every waiter that existed at
// drain time is closed, and the table is left usable for registrations that
// land after the drain.
func TestPendingConcurrentDrainRaceWithRegister(t *testing.T) {
	const rounds = 200
	p := NewPending[int, int]()

	var registered int64
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := p.Register(i)
			atomic.AddInt64(&registered, 1)
			if err != nil {
				return
			}
			select {
			case <-ch:
			case <-time.After(5 * time.Second):
				t.Errorf("registration %d never unblocked", i)
			}
		}()
	}

	// Keep draining until every Register call above has returned, then
	// sweep once more so the last arrival is closed too. Stopping as soon
	// as registered reaches rounds, rather than after a fixed number of
	// rounds, is what keeps this deterministic instead of flaky.
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt64(&registered) < rounds && time.Now().Before(deadline) {
		p.DrainWith(nil)
		time.Sleep(time.Microsecond)
	}
	p.DrainWith(nil)

	wg.Wait()
	assert.Equal(t, 0, p.Len())
}
