package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/logging"
)

// Deps carries the external collaborators every protocol manager factory
// needs: a logger, the password prompt, and the directory session state is
// persisted under (each manager shapes its own store value type, so it
// builds its own store.Store[T] from this directory rather than being
// handed one already constructed).
type Deps struct {
	Logger      logging.Logger
	Prompt      PasswordPrompt
	SessionDir  string
	NoCache     bool
}

// Factory constructs a Client and starts its worker for a single
// connection target. Registered per URL scheme by the package that
// implements a dialect, mirroring the host project's
// TransportSelector.RegisterFactory/SelectByURL registry — this avoids an
// import cycle between client (which only defines the capability) and the
// protocol manager packages (which depend on client for the Entry/Client
// types and register themselves here).
type Factory func(ctx context.Context, target *url.URL, deps Deps) (Client, Worker, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// RegisterFactory binds scheme (lowercase, no "://") to factory. Called
// from each protocol manager package's init().
func RegisterFactory(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = factory
}

// SelectByURL parses rawURL and dispatches to the factory registered for
// its scheme. An unrecognized scheme is a command error, per the CLI's
// exit-code contract.
func SelectByURL(ctx context.Context, rawURL string, deps Deps) (Client, Worker, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid URL %q: %v", errs.ErrCommand, rawURL, err)
	}

	registryMu.RLock()
	factory, ok := registry[strings.ToLower(target.Scheme)]
	registryMu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: unsupported URL scheme %q", errs.ErrCommand, target.Scheme)
	}
	return factory(ctx, target, deps)
}
