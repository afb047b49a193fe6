package keepassxc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/impl/karp/internal/rng"
)

// ClientID is chosen once per manager lifetime and sent, base64-encoded,
// on every request.
type ClientID [32]byte

// NewClientID draws a fresh client id from the current randomness source.
func NewClientID() (ClientID, error) {
	var id ClientID
	buf, err := rng.Bytes(32)
	if err != nil {
		return id, fmt.Errorf("generate client id: %w", err)
	}
	copy(id[:], buf)
	return id, nil
}

func (c ClientID) String() string { return base64.StdEncoding.EncodeToString(c[:]) }

// Key is the wire-visible association key pair member: an association id
// alongside its public key bytes.
type Key struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Request is the common envelope every KeePassXC action carries: the
// action name, the client's id, an 8-character random request id, and
// whether the server may prompt the user to unlock. Payload fields for a
// specific action are merged in by the caller before marshaling.
type Request struct {
	Action        string `json:"action"`
	ClientID      string `json:"clientID"`
	RequestID     string `json:"requestID"`
	TriggerUnlock string `json:"triggerUnlock"`
}

// NewRequest builds the common envelope fields for an outgoing request.
func NewRequest(action string, clientID ClientID, triggerUnlock bool) (Request, error) {
	reqID, err := randomAlphanumeric(8)
	if err != nil {
		return Request{}, err
	}
	unlock := "false"
	if triggerUnlock {
		unlock = "true"
	}
	return Request{
		Action:        action,
		ClientID:      clientID.String(),
		RequestID:     reqID,
		TriggerUnlock: unlock,
	}, nil
}

// EncryptedRequest is a Request plus a sealed-box payload in place of
// plaintext fields.
type EncryptedRequest struct {
	Action        string `json:"action"`
	Message       string `json:"message"`
	Nonce         string `json:"nonce"`
	ClientID      string `json:"clientID"`
	RequestID     string `json:"requestID"`
	TriggerUnlock string `json:"triggerUnlock"`
}

// ResponseError is the {error, errorCode} shape; errorCode travels on the
// wire as a JSON string, not a raw number — this type adapts that via
// UnmarshalJSON.
type ResponseError struct {
	Error     string
	ErrorCode ErrorCode
}

type responseErrorWire struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// UnmarshalJSON decodes the wire's JSON-string-encoded errorCode field.
func (e *ResponseError) UnmarshalJSON(data []byte) error {
	var wire responseErrorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var code int
	if _, err := fmt.Sscanf(wire.ErrorCode, "%d", &code); err != nil {
		return fmt.Errorf("parse errorCode %q: %w", wire.ErrorCode, err)
	}
	e.Error = wire.Error
	e.ErrorCode = ErrorCode(code)
	return nil
}

// MarshalJSON encodes errorCode back as a JSON string, matching the wire.
func (e ResponseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseErrorWire{
		Error:     e.Error,
		ErrorCode: fmt.Sprintf("%d", int(e.ErrorCode)),
	})
}

// Response is the generic top-level reply shape: an action echo, an
// optional error, and a payload (plaintext fields or {message,nonce}).
type Response struct {
	Action  string          `json:"action"`
	Error   string          `json:"error,omitempty"`
	ErrorCode json.RawMessage `json:"errorCode,omitempty"`
	Message string          `json:"message,omitempty"`
	Nonce   string          `json:"nonce,omitempty"`
	Payload json.RawMessage `json:"-"`
}

// IsError reports whether the response carries a server error.
func (r *Response) IsError() bool { return r.Error != "" }

// DecodedErrorCode parses the JSON-string-wrapped error code, if present.
func (r *Response) DecodedErrorCode() (ErrorCode, error) {
	if len(r.ErrorCode) == 0 {
		return ErrorUnknown, nil
	}
	var s string
	if err := json.Unmarshal(r.ErrorCode, &s); err != nil {
		return ErrorUnknown, fmt.Errorf("decode errorCode: %w", err)
	}
	var code int
	if _, err := fmt.Sscanf(s, "%d", &code); err != nil {
		return ErrorUnknown, fmt.Errorf("parse errorCode %q: %w", s, err)
	}
	return ErrorCode(code), nil
}

// Signal is an unsolicited server message announcing a database state
// change, carried on the same stream as responses.
type Signal int

const (
	SignalDatabaseLocked Signal = iota
	SignalDatabaseUnlocked
)

// SignalFromAction recognizes the two signal action names, returning ok=false
// for anything else (an ordinary response).
func SignalFromAction(action string) (Signal, bool) {
	switch action {
	case "database-locked":
		return SignalDatabaseLocked, true
	case "database-unlocked":
		return SignalDatabaseUnlocked, true
	default:
		return 0, false
	}
}

const alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomAlphanumeric(n int) (string, error) {
	raw, err := rng.Bytes(n)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = alphanumericAlphabet[int(b)%len(alphanumericAlphabet)]
	}
	return string(out), nil
}
