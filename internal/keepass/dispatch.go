package keepass

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/chanx"
	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/logging"
	"github.com/impl/karp/internal/metrics"
	"github.com/impl/karp/internal/wire/keepassrpc"
)

const dialectKeePassRPC = "keepassrpc"

// dispatchLoop is the Ready state: it owns the pending-call map exclusively
// (no locks needed) and multiplexes inbound decrypted responses against
// outbound calls queued from Client methods running on other goroutines.
func (m *Manager) dispatchLoop(ctx context.Context, sessionKey *cryptoprim.Hash, identifier string) error {
	pending := chanx.NewPending[string, callResult]()
	frames := make(chan json.RawMessage)
	readErrs := make(chan error, 1)

	go func() {
		for {
			raw, err := m.stream.ReadRaw()
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case frames <- raw:
			case <-ctx.Done():
				return
			case <-m.closeCh:
				return
			}
		}
	}()

	currentKey := sessionKey
	var stashed *call

	m.logger.Info("ready", logging.String("identifier", identifier))

	for {
		if stashed != nil {
			newKey, _, err := m.setup(ctx)
			if err != nil {
				stashed.reply <- callResult{err: err}
				return err
			}
			currentKey = newKey
			pendingCall := stashed
			stashed = nil
			if err := m.sendCall(ctx, pendingCall, currentKey, pending); err != nil {
				pendingCall.reply <- callResult{err: err}
			}
			continue
		}

		select {
		case <-ctx.Done():
			pending.DrainWith(m.logDroppedReply)
			return errs.ErrCancelled

		case <-m.closeCh:
			pending.DrainWith(m.logDroppedReply)
			return nil

		case err := <-readErrs:
			pending.DrainWith(m.logDroppedReply)
			return fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)

		case raw := <-frames:
			var frame keepassrpc.Frame
			if err := json.Unmarshal(raw, &frame); err != nil {
				return fmt.Errorf("decode frame: %w", err)
			}
			if frame.Protocol != "jsonrpc" {
				return fmt.Errorf("%w: protocol %q in Ready state", errs.ErrUnhandledMessage, frame.Protocol)
			}

			var encrypted cryptoprim.EncryptedJSON
			if err := json.Unmarshal(frame.JSONRPC, &encrypted); err != nil {
				return fmt.Errorf("decode jsonrpc envelope: %w", err)
			}

			var resp keepassrpc.Response
			if err := cryptoprim.DecryptJSON(*currentKey, &encrypted, &resp); err != nil {
				m.logger.Warn("decrypt failure, re-authenticating", logging.Err(err))
				metrics.Reauthentications.WithLabelValues(dialectKeePassRPC, "decrypt_failure").Inc()
				pending.DrainWith(func(id string) {
					m.logger.Warn("dropping pending call", logging.String("id", id), logging.Err(errs.ErrStorageConflict))
				})
				newKey, _, setupErr := m.setup(ctx)
				if setupErr != nil {
					return setupErr
				}
				currentKey = newKey
				continue
			}

			var callErr error
			if resp.Error != nil {
				callErr = resp.Error
			}
			if !pending.Resolve(resp.ID, callResult{result: resp.Result, err: callErr}) {
				m.logger.Warn("reply for unknown or abandoned call", logging.String("id", resp.ID))
			}

		case c := <-m.callCh:
			if err := m.sendCall(ctx, c, currentKey, pending); err != nil {
				stashed = c
			}
		}
	}
}

func (m *Manager) logDroppedReply(id string) {
	m.logger.Warn("dropping pending call on shutdown", logging.String("id", id), logging.Err(errs.ErrStorageConflict))
}

// sendCall encrypts and writes c, registering its request id in pending and
// spawning a short-lived goroutine that forwards the eventual reply to
// c.reply; if ctx is cancelled first, the goroutine exits without sending.
func (m *Manager) sendCall(ctx context.Context, c *call, key *cryptoprim.Hash, pending *chanx.Pending[string, callResult]) error {
	if key == nil {
		return errs.ErrSecurityLevelTooLow
	}

	req, err := keepassrpc.NewRequest(c.method, c.params)
	if err != nil {
		return err
	}
	replyCh, err := pending.Register(req.ID)
	if err != nil {
		return err
	}

	encrypted, err := cryptoprim.EncryptJSON(*key, req)
	if err != nil {
		pending.Cancel(req.ID)
		return err
	}
	if err := m.stream.SendJSONRPC(encrypted); err != nil {
		pending.Cancel(req.ID)
		return err
	}

	go func() {
		select {
		case res, ok := <-replyCh:
			if !ok {
				c.reply <- callResult{err: errs.ErrChannelClosed}
				return
			}
			c.reply <- res
		case <-ctx.Done():
		}
	}()
	return nil
}

// call queues method/params on the worker and blocks for its result.
func (m *Manager) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	c := &call{method: method, params: params, reply: make(chan callResult, 1)}
	start := time.Now()

	select {
	case m.callCh <- c:
	case <-ctx.Done():
		return nil, errs.ErrCancelled
	case <-m.closeCh:
		return nil, errs.ErrChannelClosed
	}

	select {
	case res := <-c.reply:
		status := "success"
		if res.err != nil {
			status = "error"
		}
		metrics.CallsTotal.WithLabelValues(dialectKeePassRPC, method, status).Inc()
		metrics.CallDuration.WithLabelValues(dialectKeePassRPC, method).Observe(time.Since(start).Seconds())
		return res.result, res.err
	case <-ctx.Done():
		return nil, errs.ErrCancelled
	}
}

// GetEntry walks GetRoot -> GetChildGroups* by title equality, then
// GetAllChildEntries, selecting by title.
func (m *Manager) GetEntry(ctx context.Context, groupPath []string, title string) (*client.Entry, error) {
	raw, err := m.call(ctx, "GetRoot", nil)
	if err != nil {
		return nil, err
	}
	var current group
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil, fmt.Errorf("decode GetRoot result: %w", err)
	}

	parentPath := ""
	for _, segment := range groupPath {
		raw, err := m.call(ctx, "GetChildGroups", []interface{}{current.UUID})
		if err != nil {
			return nil, err
		}
		var children []group
		if err := json.Unmarshal(raw, &children); err != nil {
			return nil, fmt.Errorf("decode GetChildGroups result: %w", err)
		}

		found := false
		for _, g := range children {
			if g.Title == segment {
				current = g
				found = true
				break
			}
		}
		if !found {
			return nil, &errs.GroupNotFound{Parent: parentPath, Name: segment}
		}
		parentPath = joinPath(parentPath, segment)
	}

	raw, err = m.call(ctx, "GetAllChildEntries", []interface{}{current.UUID})
	if err != nil {
		return nil, err
	}
	var logins []login
	if err := json.Unmarshal(raw, &logins); err != nil {
		return nil, fmt.Errorf("decode GetAllChildEntries result: %w", err)
	}

	for _, l := range logins {
		if l.Title == title {
			entry := l.toEntry(parentPath)
			return &entry, nil
		}
	}
	return nil, &errs.EntryNotFound{Parent: parentPath, Name: title}
}

// FindEntries issues FindLogins with freeTextSearch=query.
func (m *Manager) FindEntries(ctx context.Context, query string) ([]client.Entry, error) {
	params := keepassrpc.FindLoginsParams(nil, nil, nil, false, nil, nil, &query, nil)
	raw, err := m.call(ctx, "FindLogins", params)
	if err != nil {
		return nil, err
	}
	var logins []login
	if err := json.Unmarshal(raw, &logins); err != nil {
		return nil, fmt.Errorf("decode FindLogins result: %w", err)
	}
	out := make([]client.Entry, 0, len(logins))
	for _, l := range logins {
		out = append(out, l.toEntry(""))
	}
	return out, nil
}

func joinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return strings.Join([]string{parent, segment}, "/")
}
