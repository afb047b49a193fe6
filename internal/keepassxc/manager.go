package keepassxc

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/chanx"
	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/logging"
	"github.com/impl/karp/internal/metrics"
	"github.com/impl/karp/internal/store"
	wire "github.com/impl/karp/internal/wire/keepassxc"
)

func init() {
	client.RegisterFactory("file", dial)
}

// Manager owns one live KeePassXC Unix-socket connection: the Curve25519
// handshake, the persisted per-database association, database lock/unlock
// signal handling, and the sealed-box request/response multiplexer.
type Manager struct {
	target *url.URL
	prompt client.PasswordPrompt
	logger logging.Logger
	// sstore is intentionally not wrapped in store.Bound: that decorator
	// pins a store to one committed identifier, but a KeePassXC session
	// record accumulates one association per database ever used, so
	// there is no single identifier to pin it to. Replay protection for
	// a given database's association comes from the test-associate/
	// associate protocol itself.
	sstore  store.Store[SessionData]
	noCache bool

	stream   *wire.Stream
	clientID wire.ClientID
	ephemeral *cryptoprim.BoxKeyPair
	shared    *cryptoprim.SharedKey

	signal *chanx.Signal[wire.Signal]
	locked bool

	callCh    chan *call
	closeCh   chan struct{}
	closeOnce sync.Once
}

type call struct {
	action  string
	payload interface{}
	reply   chan callResult
}

type callResult struct {
	result json.RawMessage
	err    error
}

// dial is the client.Factory registered for the file scheme; target.Path
// is the Unix domain socket path (a plain file:///path/to/socket URL has
// no authority component).
func dial(ctx context.Context, target *url.URL, deps client.Deps) (client.Client, client.Worker, error) {
	socketPath := target.Path
	if socketPath == "" {
		socketPath = target.Opaque
	}

	stream, err := wire.Dial(socketPath)
	if err != nil {
		return nil, nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewFromEnv()
	}

	clientID, err := wire.NewClientID()
	if err != nil {
		stream.Close()
		return nil, nil, err
	}

	var sessionPath string
	if deps.SessionDir != "" {
		sessionPath = filepath.Join(deps.SessionDir, "keepassxc-session.json")
	}
	backing := store.Select[SessionData](sessionPath)

	mgr := &Manager{
		target:   target,
		prompt:   deps.Prompt,
		logger:   logger.WithFields(logging.String("dialect", "keepassxc")),
		sstore:   backing,
		noCache:  deps.NoCache,
		stream:   stream,
		clientID: clientID,
		signal:   chanx.NewSignal[wire.Signal](),
		callCh:   make(chan *call),
		closeCh:  make(chan struct{}),
	}

	done := make(chan struct{})
	w := &workerHandle{mgr: mgr, done: done}
	go func() {
		defer close(done)
		w.err = mgr.run(ctx)
	}()

	return mgr, w, nil
}

type workerHandle struct {
	mgr  *Manager
	done chan struct{}
	err  error
}

func (w *workerHandle) Wait() error {
	<-w.done
	return w.err
}

func (w *workerHandle) Close() error {
	w.mgr.closeOnce.Do(func() { close(w.mgr.closeCh) })
	<-w.done
	w.mgr.signal.Close()
	return w.mgr.stream.Close()
}

// run performs the handshake, waits out a locked database if necessary,
// associates with the database, and enters the Ready dispatch loop.
func (m *Manager) run(ctx context.Context) error {
	start := time.Now()

	if err := m.handshake(); err != nil {
		m.recordAuthOutcome(start, err)
		return err
	}

	hash, err := m.authenticate(ctx)
	if err != nil {
		m.recordAuthOutcome(start, err)
		return err
	}

	if _, err := m.associate(ctx, hash); err != nil {
		m.recordAuthOutcome(start, err)
		return err
	}
	m.recordAuthOutcome(start, nil)

	return m.dispatchLoop(ctx, hash)
}

func (m *Manager) recordAuthOutcome(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AuthAttempts.WithLabelValues(dialectKeePassXC, "handshake", status).Inc()
	metrics.AuthDuration.WithLabelValues(dialectKeePassXC).Observe(time.Since(start).Seconds())
}
