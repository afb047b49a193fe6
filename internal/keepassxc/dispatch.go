package keepassxc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/chanx"
	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/logging"
	"github.com/impl/karp/internal/metrics"
	wire "github.com/impl/karp/internal/wire/keepassxc"
)

const dialectKeePassXC = "keepassxc"

// dispatchLoop is the Ready state. Replies are multiplexed by the expected
// reply nonce (request nonce plus one); signals interleave on the same
// stream and are filtered out before reaching the pending table. A
// database-locked signal gates the next outbound call behind a fresh
// authenticate/associate round rather than failing anything already
// in flight, matching the dialect's lack of a mid-session key teardown.
func (m *Manager) dispatchLoop(ctx context.Context, hash string) error {
	pending := chanx.NewPending[cryptoprim.Nonce, callResult]()
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

	m.logger.Info("ready", logging.String("database_hash", hash))

	for {
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
			var probe struct {
				Action string `json:"action"`
			}
			if err := json.Unmarshal(raw, &probe); err != nil {
				return fmt.Errorf("decode frame: %w", err)
			}
			if sig, ok := wire.SignalFromAction(probe.Action); ok {
				m.signal.Broadcast(sig)
				if sig == wire.SignalDatabaseLocked {
					m.locked = true
					m.logger.Info("database locked")
					metrics.Reauthentications.WithLabelValues(dialectKeePassXC, "database_locked").Inc()
				}
				continue
			}

			var resp wire.Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			nonce, err := cryptoprim.ParseNonce(resp.Nonce)
			if err != nil {
				m.logger.Warn("reply with unparseable nonce", logging.Err(errs.ErrInvalidNonce))
				continue
			}

			var result callResult
			if resp.IsError() {
				code, _ := resp.DecodedErrorCode()
				result.err = &errs.ServerError{Code: int(code), Message: resp.Error}
			} else if resp.Message != "" {
				var plain json.RawMessage
				if err := cryptoprim.Open(m.shared, &cryptoprim.SealedJSON{Message: resp.Message, Nonce: resp.Nonce}, &plain); err != nil {
					result.err = err
				} else {
					result.result = plain
				}
			} else {
				result.result = raw
			}

			if !pending.Resolve(nonce, result) {
				m.logger.Warn("reply for unknown or abandoned call", logging.Err(errs.ErrInvalidNonce))
			}

		case c := <-m.callCh:
			if m.locked {
				newHash, err := m.authenticate(ctx)
				if err != nil {
					c.reply <- callResult{err: err}
					continue
				}
				if _, err := m.associate(ctx, newHash); err != nil {
					c.reply <- callResult{err: err}
					continue
				}
				hash = newHash
				m.locked = false
			}
			if err := m.sendCall(c, pending); err != nil {
				c.reply <- callResult{err: err}
			}
		}
	}
}

func (m *Manager) logDroppedReply(n cryptoprim.Nonce) {
	m.logger.Warn("dropping pending call on shutdown", logging.Err(errs.ErrChannelClosed))
}

// sendCall seals c's payload, registers the expected reply nonce in
// pending, and spawns a short-lived goroutine that forwards the eventual
// reply to c.reply; if the manager closes first, it exits without sending.
func (m *Manager) sendCall(c *call, pending *chanx.Pending[cryptoprim.Nonce, callResult]) error {
	req, err := wire.NewRequest(c.action, m.clientID, false)
	if err != nil {
		return err
	}
	sealed, nonce, err := cryptoprim.Seal(m.shared, c.payload)
	if err != nil {
		return err
	}
	expected := nonce.Next()

	replyCh, err := pending.Register(expected)
	if err != nil {
		return err
	}

	if err := m.stream.Send(wire.EncryptedRequest{
		Action:        req.Action,
		Message:       sealed.Message,
		Nonce:         sealed.Nonce,
		ClientID:      req.ClientID,
		RequestID:     req.RequestID,
		TriggerUnlock: req.TriggerUnlock,
	}); err != nil {
		pending.Cancel(expected)
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
		case <-m.closeCh:
		}
	}()
	return nil
}

// call queues action/payload on the worker and blocks for its result.
func (m *Manager) call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	c := &call{action: action, payload: payload, reply: make(chan callResult, 1)}
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
		metrics.CallsTotal.WithLabelValues(dialectKeePassXC, action, status).Inc()
		metrics.CallDuration.WithLabelValues(dialectKeePassXC, action).Observe(time.Since(start).Seconds())
		return res.result, res.err
	case <-ctx.Done():
		return nil, errs.ErrCancelled
	}
}

var _ client.Client = (*Manager)(nil)
