// Package keepassrpc holds the wire-level message types and codecs for the
// KeePassRPC WebSocket dialect: the plaintext setup handshake and the
// encrypted JSON-RPC envelope that follows it.
package keepassrpc

import "encoding/json"

// ClientVersion is the fixed protocol version karp advertises, matching the
// reference implementation's CLIENT_VERSION constant.
const ClientVersion = 0x00020000

// SecurityLevel mirrors the wire's i32 enum.
type SecurityLevel int

const (
	SecurityLevelLow    SecurityLevel = 1
	SecurityLevelMedium SecurityLevel = 2
	SecurityLevelHigh   SecurityLevel = 3
)

// Envelope is the outermost setup-frame shape: {protocol:"setup", version, ...}.
type Envelope struct {
	Protocol string          `json:"protocol"`
	Version  int             `json:"version"`
	Variant  json.RawMessage `json:"-"`
}

// ClientInitSrp is the ClientInit variant used to begin SRP authentication.
type ClientInitSrp struct {
	Features                 []string      `json:"features"`
	ClientTypeID              string        `json:"clientTypeId"`
	ClientDisplayName         string        `json:"clientDisplayName,omitempty"`
	ClientDisplayDescription  string        `json:"clientDisplayDescription,omitempty"`
	Srp                       SrpIdentify   `json:"srp"`
}

// ClientInitKey is the ClientInit variant used for session-key resumption.
type ClientInitKey struct {
	Features                 []string `json:"features"`
	ClientTypeID              string   `json:"clientTypeId"`
	ClientDisplayName         string   `json:"clientDisplayName,omitempty"`
	ClientDisplayDescription  string   `json:"clientDisplayDescription,omitempty"`
	Key                       KeyInit  `json:"key"`
}

// Features are the fixed feature flags the client always advertises.
var Features = []string{"KPRPC_FEATURE_VERSION_1_6", "KPRPC_FEATURE_WARN_USER_WHEN_FEATURE_MISSING"}

// KeyInit carries the identifier and floor security level for the
// key-resumption path.
type KeyInit struct {
	Username      string        `json:"username"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// SrpIdentify is the client's first SRP message.
type SrpIdentify struct {
	Stage         string        `json:"stage"` // "identifyToServer"
	I             string        `json:"I"`
	A             string        `json:"A"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// SrpIdentifyToClient is the server's response to SrpIdentify.
type SrpIdentifyToClient struct {
	Stage         string        `json:"stage"` // "identifyToClient"
	B             string        `json:"B"`
	Salt          string        `json:"s"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// SrpProofToServer carries the client's evidence M_c.
type SrpProofToServer struct {
	Stage         string        `json:"stage"` // "proofToServer"
	M             string        `json:"M"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// SrpProofToClient carries the server's evidence M_s.
type SrpProofToClient struct {
	Stage         string        `json:"stage"` // "proofToClient"
	M2            string        `json:"M2"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// KeyServerChallenge starts the key-resumption challenge/response.
type KeyServerChallenge struct {
	SC            string        `json:"sc"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// KeyClientNegotiation is the client's reply to KeyServerChallenge.
type KeyClientNegotiation struct {
	CC            string        `json:"cc"`
	CR            string        `json:"cr"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// KeyServerResponse completes the key-resumption exchange.
type KeyServerResponse struct {
	SR            string        `json:"sr"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

// SetupError is the server's rejection of a setup message (name == "AuthFailed" on bad credentials).
type SetupError struct {
	Name string `json:"name"`
}
