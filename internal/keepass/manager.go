package keepass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/logging"
	"github.com/impl/karp/internal/store"
	"github.com/impl/karp/internal/wire/keepassrpc"
)

func init() {
	client.RegisterFactory("ws", dial)
	client.RegisterFactory("wss", dial)
}

// Manager owns one live KeePassRPC WebSocket stream for its entire
// lifetime: the plaintext setup/SRP/key-resumption handshake, the bound
// session store, and the encrypted JSON-RPC dispatch loop.
type Manager struct {
	target  *url.URL
	prompt  client.PasswordPrompt
	logger  logging.Logger
	sstore  *store.Bound[SessionData]
	noCache bool

	stream *keepassrpc.Stream

	callCh  chan *call
	closeCh chan struct{}
	closeOnce sync.Once
}

type call struct {
	method string
	params []interface{}
	reply  chan callResult
}

type callResult struct {
	result json.RawMessage
	err    error
}

// dial is the client.Factory registered for the ws/wss schemes.
func dial(ctx context.Context, target *url.URL, deps client.Deps) (client.Client, client.Worker, error) {
	stream, err := keepassrpc.Dial(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewFromEnv()
	}

	var sessionPath string
	if deps.SessionDir != "" {
		sessionPath = filepath.Join(deps.SessionDir, "session.json")
	}
	backing := store.Select[SessionData](sessionPath)

	mgr := &Manager{
		target:  target,
		prompt:  deps.Prompt,
		logger:  logger.WithFields(logging.String("dialect", "keepassrpc")),
		sstore:  store.NewBound[SessionData](backing),
		noCache: deps.NoCache,
		stream:  stream,
		callCh:  make(chan *call),
		closeCh: make(chan struct{}),
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
	return w.mgr.stream.Close()
}

// run performs setup, then enters the Ready dispatch loop. Any setup error
// terminates the worker immediately, matching the propagation policy: only
// Ready-loop decrypt/storage failures trigger re-authentication instead of
// failing outright.
func (m *Manager) run(ctx context.Context) error {
	sessionKey, identifier, err := m.setup(ctx)
	if err != nil {
		return err
	}
	return m.dispatchLoop(ctx, sessionKey, identifier)
}

func requiredSecurityLevel(persistent bool) keepassrpc.SecurityLevel {
	if store.SecurityLevelFor(persistent) == store.SecurityLevelMedium {
		return keepassrpc.SecurityLevelMedium
	}
	return keepassrpc.SecurityLevelHigh
}

func checkSecurityLevel(required, got keepassrpc.SecurityLevel) error {
	if got < required {
		return fmt.Errorf("%w: server offered %d, required %d", errs.ErrSecurityLevelTooLow, got, required)
	}
	return nil
}
