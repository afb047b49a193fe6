package keepassxc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	wire "github.com/impl/karp/internal/wire/keepassxc"
)

type changePublicKeysPayload struct {
	wire.Request
	PublicKey string `json:"publicKey"`
	Nonce     string `json:"nonce"`
}

type changePublicKeysReply struct {
	PublicKey string `json:"publicKey"`
	Nonce     string `json:"nonce"`
}

// handshake performs the unencrypted change-public-keys exchange: a fresh
// Curve25519 keypair is generated for this connection and precomputed
// against whatever public key the server offers back.
func (m *Manager) handshake() error {
	ephemeral, err := cryptoprim.GenerateBoxKeyPair()
	if err != nil {
		return err
	}
	m.ephemeral = ephemeral

	nonce, err := cryptoprim.RandomNonce()
	if err != nil {
		return err
	}

	req, err := wire.NewRequest("change-public-keys", m.clientID, false)
	if err != nil {
		return err
	}

	if err := m.stream.Send(changePublicKeysPayload{
		Request:   req,
		PublicKey: base64Key(ephemeral.Public),
		Nonce:     nonce.String(),
	}); err != nil {
		return err
	}

	raw, err := m.stream.ReadRaw()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)
	}

	var resp wire.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode change-public-keys reply: %w", err)
	}
	if resp.IsError() {
		code, _ := resp.DecodedErrorCode()
		return &errs.ServerError{Code: int(code), Message: resp.Error}
	}

	var reply changePublicKeysReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("decode change-public-keys reply: %w", err)
	}

	expected := nonce.Next().String()
	if reply.Nonce != expected {
		return fmt.Errorf("%w: change-public-keys reply nonce mismatch", errs.ErrInvalidNonce)
	}

	serverPublic, err := parseKey(reply.PublicKey)
	if err != nil {
		return err
	}

	m.shared = m.ephemeral.Precompute(serverPublic)
	return nil
}

type getDatabaseHashReply struct {
	Hash string `json:"hash"`
}

// authenticate repeatedly looks up the open database's hash, waiting on
// the stream itself while the server reports DatabaseNotOpened: no
// dispatch loop is running yet to multiplex unsolicited frames, so this
// phase reads the socket directly rather than subscribing to the signal
// fan-out dispatchLoop drives later.
func (m *Manager) authenticate(ctx context.Context) (string, error) {
	for {
		hash, err := m.getDatabaseHash()
		if err == nil {
			return hash, nil
		}

		var serverErr *errs.ServerError
		if !errors.As(err, &serverErr) || wire.ErrorCode(serverErr.Code) != wire.ErrorDatabaseNotOpened {
			return "", err
		}

		m.logger.Info("database locked, waiting for unlock")
		if err := m.waitForUnlock(ctx); err != nil {
			return "", err
		}
	}
}

// waitForUnlock blocks for the next frame on the stream, which KeePassXC
// sends unprompted once the user unlocks the database. Any frame is
// treated as a cue to retry get-databasehash; a recognized signal is also
// broadcast for parity with the Ready-state handling in dispatchLoop.
func (m *Manager) waitForUnlock(ctx context.Context) error {
	frames := make(chan json.RawMessage, 1)
	readErrs := make(chan error, 1)
	go func() {
		raw, err := m.stream.ReadRaw()
		if err != nil {
			readErrs <- err
			return
		}
		frames <- raw
	}()

	select {
	case raw := <-frames:
		var probe struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("decode frame while waiting for unlock: %w", err)
		}
		if sig, ok := wire.SignalFromAction(probe.Action); ok {
			m.signal.Broadcast(sig)
		}
		return nil
	case err := <-readErrs:
		return fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)
	case <-ctx.Done():
		return errs.ErrCancelled
	}
}

func (m *Manager) getDatabaseHash() (string, error) {
	req, err := wire.NewRequest("get-databasehash", m.clientID, true)
	if err != nil {
		return "", err
	}
	if err := m.stream.Send(req); err != nil {
		return "", err
	}

	raw, err := m.stream.ReadRaw()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)
	}

	var resp wire.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode get-databasehash reply: %w", err)
	}
	if resp.IsError() {
		code, _ := resp.DecodedErrorCode()
		return "", &errs.ServerError{Code: int(code), Message: resp.Error}
	}

	var reply getDatabaseHashReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode get-databasehash reply: %w", err)
	}
	return reply.Hash, nil
}

func base64Key(key [32]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

func parseKey(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return out, &errs.Conversion{Kind: errs.ConversionEncoding, Message: err.Error()}
	}
	if len(raw) != 32 {
		return out, &errs.Conversion{Kind: errs.ConversionKeyMaterialLength, Message: fmt.Sprintf("public key must be 32 bytes, got %d", len(raw))}
	}
	copy(out[:], raw)
	return out, nil
}
