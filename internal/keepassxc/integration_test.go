package keepassxc

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/logging"
)

func quietLogger() logging.Logger { return logging.New(io.Discard, logging.ErrorLevel) }

// failPrompt fails any call; none of these scenarios ever prompt.
type failPrompt struct{}

func (failPrompt) Prompt(ctx context.Context, message string) (string, error) {
	return "", fmt.Errorf("unexpected password prompt: %s", message)
}

func fileURL(socketPath string) *url.URL {
	return &url.URL{Scheme: "file", Path: socketPath}
}

func listenUnix(t *testing.T) (*net.UnixListener, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "keepassxc.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	return l.(*net.UnixListener), path
}

// fakeConn holds one accepted connection's raw reader plus the keys needed
// to speak KeePassXC's plaintext-then-sealed-box protocol, without going
// through the cryptoprim package (its shared-key bytes are unexported, so
// the fake server derives its own directly via nacl/box).
type fakeConn struct {
	t     *testing.T
	conn  net.Conn
	buf   []byte
	pub   [32]byte
	priv  [32]byte
	shared [32]byte
}

func acceptFake(t *testing.T, l *net.UnixListener) *fakeConn {
	t.Helper()
	conn, err := l.Accept()
	require.NoError(t, err)
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &fakeConn{t: t, conn: conn, pub: *pub, priv: *priv}
}

func (f *fakeConn) readRaw() json.RawMessage {
	f.t.Helper()
	for {
		var raw json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(f.buf))
		if err := dec.Decode(&raw); err == nil {
			consumed := int(dec.InputOffset())
			f.buf = append([]byte{}, f.buf[consumed:]...)
			return raw
		}
		chunk := make([]byte, 4096)
		n, err := f.conn.Read(chunk)
		require.NoError(f.t, err)
		f.buf = append(f.buf, chunk[:n]...)
	}
}

func (f *fakeConn) send(v interface{}) {
	f.t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(f.t, err)
	_, err = f.conn.Write(raw)
	require.NoError(f.t, err)
}

// handshake performs the server side of change-public-keys: reads the
// client's ephemeral public key and nonce, replies with its own, and
// derives the Curve25519 shared key both sides will use.
func (f *fakeConn) handshake() {
	f.t.Helper()
	var req struct {
		PublicKey string `json:"publicKey"`
		Nonce     string `json:"nonce"`
	}
	require.NoError(f.t, json.Unmarshal(f.readRaw(), &req))

	clientPub, err := base64.StdEncoding.DecodeString(req.PublicKey)
	require.NoError(f.t, err)
	var clientPubArr [32]byte
	copy(clientPubArr[:], clientPub)
	box.Precompute(&f.shared, &clientPubArr, &f.priv)

	clientNonce, err := cryptoprim.ParseNonce(req.Nonce)
	require.NoError(f.t, err)

	f.send(map[string]interface{}{
		"action":    "change-public-keys",
		"publicKey": base64.StdEncoding.EncodeToString(f.pub[:]),
		"nonce":     clientNonce.Next().String(),
	})
}

// rejectDatabaseHash answers one get-databasehash request with the
// DatabaseNotOpened server error.
func (f *fakeConn) rejectDatabaseHash() {
	f.t.Helper()
	var req struct {
		Action string `json:"action"`
	}
	require.NoError(f.t, json.Unmarshal(f.readRaw(), &req))
	require.Equal(f.t, "get-databasehash", req.Action)
	f.send(map[string]interface{}{
		"action":    "get-databasehash",
		"error":     "Database not opened.",
		"errorCode": "1",
	})
}

// acceptDatabaseHash answers one get-databasehash request with hash.
func (f *fakeConn) acceptDatabaseHash(hash string) {
	f.t.Helper()
	var req struct {
		Action string `json:"action"`
	}
	require.NoError(f.t, json.Unmarshal(f.readRaw(), &req))
	require.Equal(f.t, "get-databasehash", req.Action)
	f.send(map[string]interface{}{"action": "get-databasehash", "hash": hash})
}

func (f *fakeConn) sendUnlockSignal() {
	f.t.Helper()
	f.send(map[string]interface{}{"action": "database-unlocked"})
}

// decryptedRequest reads one EncryptedRequest frame and opens it under the
// shared key, returning the action, the plaintext payload, and the nonce
// the reply must answer with (request nonce plus one).
func (f *fakeConn) decryptedRequest(v interface{}) (action string, replyNonce cryptoprim.Nonce) {
	f.t.Helper()
	var req struct {
		Action  string `json:"action"`
		Message string `json:"message"`
		Nonce   string `json:"nonce"`
	}
	require.NoError(f.t, json.Unmarshal(f.readRaw(), &req))

	ciphertext, err := base64.StdEncoding.DecodeString(req.Message)
	require.NoError(f.t, err)
	nonce, err := cryptoprim.ParseNonce(req.Nonce)
	require.NoError(f.t, err)

	plaintext, ok := box.OpenAfterPrecomputation(nil, ciphertext, (*[cryptoprim.NonceSize]byte)(&nonce), &f.shared)
	require.True(f.t, ok, "fake server failed to open client request")
	require.NoError(f.t, json.Unmarshal(plaintext, v))

	return req.Action, nonce.Next()
}

// sealedReply seals v under the shared key with exactly nonce (the
// correlation the real dispatch loop relies on: reply nonce = request
// nonce plus one) and sends it as a Response-shaped frame.
func (f *fakeConn) sealedReply(action string, nonce cryptoprim.Nonce, v interface{}) {
	f.t.Helper()
	plaintext, err := json.Marshal(v)
	require.NoError(f.t, err)
	sealed := box.SealAfterPrecomputation(nil, plaintext, (*[cryptoprim.NonceSize]byte)(&nonce), &f.shared)
	f.send(map[string]interface{}{
		"action":  action,
		"message": base64.StdEncoding.EncodeToString(sealed),
		"nonce":   nonce.String(),
	})
}

func (f *fakeConn) sealedError(action string, code int, message string) {
	f.t.Helper()
	f.send(map[string]interface{}{
		"action":    action,
		"error":     message,
		"errorCode": fmt.Sprintf("%d", code),
	})
}

// TestLockedDatabaseUnlocksAndRetries covers a database that is locked at
// connect time: get-databasehash is rejected with DatabaseNotOpened, the
// worker waits on the stream, an unprompted database-unlocked push
// arrives, and the worker retries and proceeds to associate successfully.
func TestLockedDatabaseUnlocksAndRetries(t *testing.T) {
	l, path := listenUnix(t)
	defer l.Close()

	const hash = "db-hash-1"

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := acceptFake(t, l)
		defer f.conn.Close()

		f.handshake()
		f.rejectDatabaseHash()
		f.sendUnlockSignal()
		f.acceptDatabaseHash(hash)

		var assocPayload map[string]interface{}
		action, nonce := f.decryptedRequest(&assocPayload)
		require.Equal(t, "associate", action)
		f.sealedReply("associate", nonce, map[string]string{"hash": hash, "id": "karp-client"})

		var loginsPayload map[string]interface{}
		action, nonce = f.decryptedRequest(&loginsPayload)
		require.Equal(t, "get-logins", action)
		f.sealedReply("get-logins", nonce, map[string]interface{}{
			"count": 1,
			"entries": []map[string]string{
				{"login": "alice", "password": "hunter2", "name": "Example", "uuid": "e1", "group": "Root"},
			},
		})
	}()

	sessionDir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, worker, err := dial(ctx, fileURL(path), client.Deps{
		Logger: quietLogger(), Prompt: failPrompt{}, SessionDir: sessionDir,
	})
	require.NoError(t, err)
	defer worker.Close()

	entries, err := c.FindEntries(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Example", entries[0].Title)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fake server goroutine never finished")
	}
}

// TestAssociationRolloverOnFailure covers a stored association the server
// rejects: test-associate comes back AssociationFailed, the worker issues
// a fresh associate, and the store is updated with the new id/id_key
// before the next get-logins call succeeds.
func TestAssociationRolloverOnFailure(t *testing.T) {
	l, path := listenUnix(t)
	defer l.Close()

	const hash = "db-hash-2"

	staleSecret, err := cryptoprim.GenerateSecretKey()
	require.NoError(t, err)

	sessionDir := t.TempDir()
	seedXCSessionFile(t, sessionDir, SessionData{
		Keys: map[string]AssocKey{hash: {ID: "stale-id", IDKey: staleSecret}},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := acceptFake(t, l)
		defer f.conn.Close()

		f.handshake()
		f.acceptDatabaseHash(hash)

		var testAssoc map[string]interface{}
		action, _ := f.decryptedRequest(&testAssoc)
		require.Equal(t, "test-associate", action)
		require.Equal(t, "stale-id", testAssoc["id"])
		f.sealedError("test-associate", 8, "Association failed.")

		var assoc map[string]interface{}
		action, nonce := f.decryptedRequest(&assoc)
		require.Equal(t, "associate", action)
		f.sealedReply("associate", nonce, map[string]string{"hash": hash, "id": "fresh-id"})

		var logins map[string]interface{}
		action, nonce = f.decryptedRequest(&logins)
		require.Equal(t, "get-logins", action)
		f.sealedReply("get-logins", nonce, map[string]interface{}{
			"count": 1,
			"entries": []map[string]string{
				{"login": "bob", "password": "swordfish", "name": "Rolled Over", "uuid": "e2", "group": ""},
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, worker, err := dial(ctx, fileURL(path), client.Deps{
		Logger: quietLogger(), Prompt: failPrompt{}, SessionDir: sessionDir,
	})
	require.NoError(t, err)
	defer worker.Close()

	entries, err := c.FindEntries(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Rolled Over", entries[0].Title)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fake server goroutine never finished")
	}

	stored := readXCSessionFile(t, sessionDir)
	assoc, ok := stored.Keys[hash]
	require.True(t, ok)
	assert.Equal(t, "fresh-id", assoc.ID)
	assert.NotEqual(t, staleSecret, assoc.IDKey)
}

func seedXCSessionFile(t *testing.T, dir string, data SessionData) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keepassxc-session.json"), raw, 0o600))
}

func readXCSessionFile(t *testing.T, dir string) SessionData {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "keepassxc-session.json"))
	require.NoError(t, err)
	var data SessionData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}
