// Package keepass implements the KeePassRPC protocol manager: the plaintext
// setup/SRP/key-resumption state machine, the encrypted JSON-RPC request
// multiplexer, and the client.Client conversion of GetRoot/GetChildGroups/
// GetAllChildEntries/FindLogins results into client.Entry values.
package keepass

import (
	"encoding/json"

	"github.com/impl/karp/internal/cryptoprim"
)

// SessionData is the persisted record for a KeePassRPC session: the SRP
// identifier committed for this store, and the derived session key once
// SRP or key-resumption authentication has succeeded.
type SessionData struct {
	Identifier string
	SessionKey *cryptoprim.Hash
}

// StoreIdentifier implements store.Identified so SessionData can be held
// behind a store.Bound[SessionData].
func (s SessionData) StoreIdentifier() string { return s.Identifier }

type sessionDataWire struct {
	Identifier string  `json:"identifier"`
	SessionKey *string `json:"session_key"`
}

// MarshalJSON renders the session key as lowercase hex, or JSON null when
// not yet authenticated.
func (s SessionData) MarshalJSON() ([]byte, error) {
	wire := sessionDataWire{Identifier: s.Identifier}
	if s.SessionKey != nil {
		hex := s.SessionKey.String()
		wire.SessionKey = &hex
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the persisted shape back into a SessionData.
func (s *SessionData) UnmarshalJSON(data []byte) error {
	var wire sessionDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Identifier = wire.Identifier
	s.SessionKey = nil
	if wire.SessionKey != nil {
		h, err := cryptoprim.ParseHash(*wire.SessionKey)
		if err != nil {
			return err
		}
		s.SessionKey = &h
	}
	return nil
}
