package keepassxc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	wire "github.com/impl/karp/internal/wire/keepassxc"
)

type testAssociatePayload struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Key    string `json:"key"`
}

type associatePayload struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	IDKey  string `json:"idKey"`
}

type associateReply struct {
	Hash string `json:"hash"`
	ID   string `json:"id"`
}

// associate returns the association to use for hash, replaying a stored
// one via test-associate when available and falling through to a fresh
// associate on AssociationFailed (including when nothing is stored yet).
func (m *Manager) associate(ctx context.Context, hash string) (AssocKey, error) {
	existing, ok, err := m.sstore.Get()
	if err != nil {
		return AssocKey{}, err
	}
	if !ok {
		existing = SessionData{}
	}

	if assoc, found := existing.Keys[hash]; found && !m.noCache {
		idKeyPair := cryptoprim.BoxKeyPairFromSecret(assoc.IDKey)
		_, err := m.sendEncryptedSync("test-associate", testAssociatePayload{
			Action: "test-associate",
			ID:     assoc.ID,
			Key:    base64Key(idKeyPair.Public),
		})
		if err == nil {
			return assoc, nil
		}

		var serverErr *errs.ServerError
		if !errors.As(err, &serverErr) || wire.ErrorCode(serverErr.Code) != wire.ErrorAssociationFailed {
			return AssocKey{}, err
		}
		m.logger.Info("stored association rejected, creating a new one")
	}

	idKeyPair, err := cryptoprim.GenerateBoxKeyPair()
	if err != nil {
		return AssocKey{}, err
	}

	raw, err := m.sendEncryptedSync("associate", associatePayload{
		Action: "associate",
		Key:    base64Key(m.ephemeral.Public),
		IDKey:  base64Key(idKeyPair.Public),
	})
	if err != nil {
		return AssocKey{}, err
	}

	var reply associateReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return AssocKey{}, fmt.Errorf("decode associate reply: %w", err)
	}

	newAssoc := AssocKey{ID: reply.ID, IDKey: idKeyPair.Secret()}

	updated := SessionData{Keys: make(map[string]AssocKey, len(existing.Keys)+1)}
	for h, a := range existing.Keys {
		updated.Keys[h] = a
	}
	updated.Keys[hash] = newAssoc
	if err := m.sstore.Update(updated); err != nil {
		return AssocKey{}, err
	}

	return newAssoc, nil
}

// sendEncryptedSync seals payload under the connection's shared key, sends
// it as action, and synchronously reads and decrypts the single reply.
// Used for the one-off handshake-adjacent calls (test-associate,
// associate) that happen before the Ready dispatch loop starts
// multiplexing replies by nonce.
func (m *Manager) sendEncryptedSync(action string, payload interface{}) (json.RawMessage, error) {
	req, err := wire.NewRequest(action, m.clientID, false)
	if err != nil {
		return nil, err
	}
	sealed, _, err := cryptoprim.Seal(m.shared, payload)
	if err != nil {
		return nil, err
	}

	if err := m.stream.Send(wire.EncryptedRequest{
		Action:        req.Action,
		Message:       sealed.Message,
		Nonce:         sealed.Nonce,
		ClientID:      req.ClientID,
		RequestID:     req.RequestID,
		TriggerUnlock: req.TriggerUnlock,
	}); err != nil {
		return nil, err
	}

	raw, err := m.stream.ReadRaw()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)
	}
	return m.decryptReply(raw)
}

// decryptReply interprets a response frame: a server error is surfaced as
// errs.ServerError, an encrypted payload is opened under the shared key,
// and a plaintext payload (no message/nonce) is returned as-is.
func (m *Manager) decryptReply(raw json.RawMessage) (json.RawMessage, error) {
	var resp wire.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.IsError() {
		code, _ := resp.DecodedErrorCode()
		return nil, &errs.ServerError{Code: int(code), Message: resp.Error}
	}
	if resp.Message == "" {
		return raw, nil
	}

	var plain json.RawMessage
	if err := cryptoprim.Open(m.shared, &cryptoprim.SealedJSON{Message: resp.Message, Nonce: resp.Nonce}, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
