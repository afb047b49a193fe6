// Package keepassxc implements the KeePassXC native-messaging protocol
// manager: the Curve25519 handshake, database-hash lookup,
// associate/test-associate, signal handling, and the sealed-box request
// multiplexer, converted into client.Entry values by get-logins.
package keepassxc

import (
	"encoding/json"

	"github.com/impl/karp/internal/cryptoprim"
)

// AssocKey is a durable association bound to one database, identified by
// its hash.
type AssocKey struct {
	ID    string
	IDKey cryptoprim.SecretKey
}

// SessionData is the persisted record for a KeePassXC session: one
// association per database hash ever associated with from this store.
type SessionData struct {
	Keys map[string]AssocKey
}

type sessionDataWire struct {
	Keys map[string]assocKeyWire `json:"keys"`
}

type assocKeyWire struct {
	ID    string `json:"id"`
	IDKey string `json:"id_key"`
}

// MarshalJSON renders the association map with base64 id_key values.
func (s SessionData) MarshalJSON() ([]byte, error) {
	wire := sessionDataWire{Keys: make(map[string]assocKeyWire, len(s.Keys))}
	for hash, key := range s.Keys {
		wire.Keys[hash] = assocKeyWire{ID: key.ID, IDKey: key.IDKey.String()}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the persisted shape back into a SessionData.
func (s *SessionData) UnmarshalJSON(data []byte) error {
	var wire sessionDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	keys := make(map[string]AssocKey, len(wire.Keys))
	for hash, w := range wire.Keys {
		idKey, err := cryptoprim.ParseSecretKey(w.IDKey)
		if err != nil {
			return err
		}
		keys[hash] = AssocKey{ID: w.ID, IDKey: idKey}
	}
	s.Keys = keys
	return nil
}
