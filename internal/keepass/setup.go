package keepass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	"github.com/impl/karp/internal/metrics"
	"github.com/impl/karp/internal/rng"
	"github.com/impl/karp/internal/srp"
	"github.com/impl/karp/internal/wire/keepassrpc"
)

// errAuthFailed marks a setup attempt that the server explicitly rejected
// with {name:"AuthFailed"}, as opposed to a transport or protocol error;
// callers use it to decide whether to fall back to a fresh SRP attempt.
var errAuthFailed = errors.New("keepassrpc: AuthFailed")

// setupFrame merges every plaintext setup message shape the server can
// send into one flexible struct: the wire has no single discriminated
// union, so fields are simply absent (zero value) when not relevant to a
// given stage.
type setupFrame struct {
	Protocol      string                  `json:"protocol"`
	Stage         string                  `json:"stage"`
	Name          string                  `json:"name"`
	B             string                  `json:"B"`
	Salt          string                  `json:"s"`
	M2            string                  `json:"M2"`
	SC            string                  `json:"sc"`
	SR            string                  `json:"sr"`
	SecurityLevel keepassrpc.SecurityLevel `json:"securityLevel"`
}

func (m *Manager) readSetupFrame() (*setupFrame, error) {
	raw, err := m.stream.ReadRaw()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStreamEnded, err)
	}
	var frame setupFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode setup frame: %w", err)
	}
	return &frame, nil
}

// setup runs the full handshake contract: key-resumption first when the
// store already holds an authenticated session and caching isn't disabled,
// falling through to SRP (fresh or retried) otherwise.
func (m *Manager) setup(ctx context.Context) (*cryptoprim.Hash, string, error) {
	start := time.Now()
	defer func() {
		metrics.AuthDuration.WithLabelValues(dialectKeePassRPC).Observe(time.Since(start).Seconds())
	}()

	required := requiredSecurityLevel(m.sstore.IsPersistent())

	existing, ok, err := m.sstore.Get()
	if err != nil {
		return nil, "", err
	}

	if ok && existing.SessionKey != nil && !m.noCache {
		key, ident, err := m.keyResumption(existing, required)
		if err == nil {
			metrics.AuthAttempts.WithLabelValues(dialectKeePassRPC, "key_resumption", "success").Inc()
			return key, ident, nil
		}
		if !errors.Is(err, errAuthFailed) {
			metrics.AuthAttempts.WithLabelValues(dialectKeePassRPC, "key_resumption", "error").Inc()
			return nil, "", err
		}
		metrics.AuthAttempts.WithLabelValues(dialectKeePassRPC, "key_resumption", "rejected").Inc()
		m.logger.Info("key resumption rejected by server, retrying with fresh SRP")
		if err := m.sstore.Clear(); err != nil {
			return nil, "", err
		}
		key, ident, err := m.srpFlow(ctx, "", required)
		recordSRPOutcome(err)
		return key, ident, err
	}

	identifierSeed := ""
	if ok {
		identifierSeed = existing.Identifier
	}
	key, ident, err := m.srpFlow(ctx, identifierSeed, required)
	recordSRPOutcome(err)
	return key, ident, err
}

func recordSRPOutcome(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AuthAttempts.WithLabelValues(dialectKeePassRPC, "srp", status).Inc()
}

// srpFlow drives the SrpInit/SrpComputed/Authenticated path, retrying with
// a re-prompted password (keeping the same identifier) on AuthFailed until
// the server accepts or the prompt is cancelled.
func (m *Manager) srpFlow(ctx context.Context, identifierSeed string, required keepassrpc.SecurityLevel) (*cryptoprim.Hash, string, error) {
	promptMessage := "Master password:"

	for {
		init, err := srp.New(identifierSeed)
		if err != nil {
			return nil, "", err
		}
		identifierSeed = init.Identifier()

		if err := m.sstore.Update(SessionData{Identifier: init.Identifier()}); err != nil {
			return nil, "", err
		}

		if err := m.stream.SendSetup(keepassrpc.ClientInitSrp{
			Features:     keepassrpc.Features,
			ClientTypeID: "karp",
			Srp: keepassrpc.SrpIdentify{
				Stage:         "identifyToServer",
				I:             init.Identifier(),
				A:             init.PublicKey().String(),
				SecurityLevel: required,
			},
		}); err != nil {
			return nil, "", err
		}

		frame, err := m.readSetupFrame()
		if err != nil {
			return nil, "", err
		}
		if frame.Name == "AuthFailed" {
			promptMessage = "Incorrect password."
			continue
		}
		if frame.Stage != "identifyToClient" {
			return nil, "", fmt.Errorf("%w: unexpected setup stage %q", errs.ErrUnhandledMessage, frame.Stage)
		}
		if err := checkSecurityLevel(required, frame.SecurityLevel); err != nil {
			return nil, "", err
		}

		password, err := m.prompt.Prompt(ctx, promptMessage)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errs.ErrCancelled, err)
		}

		computed, err := init.Compute(frame.B, frame.Salt, password)
		if err != nil {
			return nil, "", err
		}

		if err := m.stream.SendSetup(keepassrpc.SrpProofToServer{
			Stage:         "proofToServer",
			M:             computed.ClientEvidence().String(),
			SecurityLevel: required,
		}); err != nil {
			return nil, "", err
		}

		reply, err := m.readSetupFrame()
		if err != nil {
			return nil, "", err
		}
		if reply.Name == "AuthFailed" {
			promptMessage = "Incorrect password."
			continue
		}
		if reply.Stage != "proofToClient" {
			return nil, "", fmt.Errorf("%w: unexpected setup stage %q", errs.ErrUnhandledMessage, reply.Stage)
		}

		serverEvidence, err := cryptoprim.ParseHash(reply.M2)
		if err != nil {
			return nil, "", err
		}
		authenticated, err := computed.Authenticate(serverEvidence)
		if err != nil {
			return nil, "", err
		}

		key := authenticated.SessionKey()
		if err := m.sstore.Update(SessionData{Identifier: authenticated.Identifier(), SessionKey: &key}); err != nil {
			return nil, "", err
		}
		return &key, authenticated.Identifier(), nil
	}
}

// keyResumption drives the KeyInit/KeyServerChallenge/KeyClientNegotiation/
// KeyServerResponse path against an already-authenticated session,
// avoiding a password prompt entirely on success.
func (m *Manager) keyResumption(existing SessionData, required keepassrpc.SecurityLevel) (*cryptoprim.Hash, string, error) {
	if err := m.stream.SendSetup(keepassrpc.ClientInitKey{
		Features:     keepassrpc.Features,
		ClientTypeID: "karp",
		Key: keepassrpc.KeyInit{
			Username:      existing.Identifier,
			SecurityLevel: keepassrpc.SecurityLevelMedium,
		},
	}); err != nil {
		return nil, "", err
	}

	frame, err := m.readSetupFrame()
	if err != nil {
		return nil, "", err
	}
	if frame.Name == "AuthFailed" {
		return nil, "", errAuthFailed
	}
	if err := checkSecurityLevel(required, frame.SecurityLevel); err != nil {
		return nil, "", err
	}

	sc := frame.SC
	cc, err := randomLowercaseHex(32)
	if err != nil {
		return nil, "", err
	}
	keyHex := existing.SessionKey.String()
	cr := sha256Hex("1" + keyHex + sc + cc)

	if err := m.stream.SendSetup(keepassrpc.KeyClientNegotiation{
		CC:            cc,
		CR:            cr,
		SecurityLevel: required,
	}); err != nil {
		return nil, "", err
	}

	reply, err := m.readSetupFrame()
	if err != nil {
		return nil, "", err
	}
	if reply.Name == "AuthFailed" {
		return nil, "", errAuthFailed
	}

	expected := sha256Hex("0" + keyHex + sc + cc)
	if reply.SR != expected {
		return nil, "", errs.ErrServerResponseMismatch
	}

	return existing.SessionKey, existing.Identifier, nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomLowercaseHex(n int) (string, error) {
	buf, err := rng.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
