package keepassrpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is a JSON-RPC 1.0-ish call: {id, method, params}.
type Request struct {
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// NewRequest builds a request with a freshly generated random id.
func NewRequest(method string, params []interface{}) (*Request, error) {
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	return &Request{ID: id, Method: method, Params: params}, nil
}

// RPCError is the {name, message, errors} error shape returned in place of
// a result.
type RPCError struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Response is {id, result} or {id, error}, distinguished by which field is
// present on the wire.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

func randomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// FindLoginsParams builds the nine-positional-argument parameter list for
// the FindLogins RPC method. The legacy LoginSearchType slot (position 3,
// zero-indexed) is transmitted as JSON null — preserved verbatim per the
// reference implementation until a compatibility guide says otherwise.
func FindLoginsParams(urls []string, actionURL, httpRealm *string, requireFullURLMatches bool, uniqueID, dbRootID, freeTextSearch, username *string) []interface{} {
	return []interface{}{
		urls,
		orNull(actionURL),
		orNull(httpRealm),
		nil, // legacy LoginSearchType sentinel, always null
		requireFullURLMatches,
		orNull(uniqueID),
		orNull(dbRootID),
		orNull(freeTextSearch),
		orNull(username),
	}
}

func orNull(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
