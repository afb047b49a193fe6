package keepassrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// Frame is the tagged union of setup/jsonrpc messages as they travel over
// the wire, discriminated by the "protocol" field. Callers decode ReadRaw's
// output into a Frame first to learn which variant follows.
type Frame struct {
	Protocol string          `json:"protocol"`
	Version  int             `json:"version,omitempty"`
	JSONRPC  json.RawMessage `json:"jsonrpc,omitempty"`
}

// Stream wraps a WebSocket connection, sending and receiving whole JSON
// text frames one at a time — the duplex MessageStream the protocol
// manager is built on.
type Stream struct {
	conn *websocket.Conn
}

// Dial connects to a KeePassRPC server, sending the Origin header the
// reference implementation requires (karp://karp) since the server
// validates it as a lightweight CSRF guard.
func Dial(ctx context.Context, target *url.URL) (*Stream, error) {
	header := http.Header{}
	header.Set("Origin", "karp://karp")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial keepassrpc websocket: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// SendSetup writes a plaintext setup frame.
func (s *Stream) SendSetup(variant interface{}) error {
	payload, err := json.Marshal(variant)
	if err != nil {
		return fmt.Errorf("marshal setup frame: %w", err)
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &merged); err != nil {
		return fmt.Errorf("remarshal setup frame: %w", err)
	}
	merged["protocol"] = mustMarshal("setup")
	merged["version"] = mustMarshal(ClientVersion)
	return s.conn.WriteJSON(merged)
}

// SendJSONRPC writes an encrypted jsonrpc frame.
func (s *Stream) SendJSONRPC(envelope interface{}) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"protocol": "jsonrpc",
		"jsonrpc":  envelope,
	})
}

// ReadRaw reads the next text frame without interpreting it, so callers
// can decode the variant-specific fields themselves.
func (s *Stream) ReadRaw() (json.RawMessage, error) {
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return raw, nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
