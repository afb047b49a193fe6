// Package errs collects the error taxonomy shared across karp's protocol
// managers. Every exported type implements error; call sites wrap them with
// fmt.Errorf's %w so callers can use errors.As/errors.Is against a taxonomy
// member. The types themselves carry no cause and have no Unwrap method.
package errs

import "fmt"

// Sentinel errors that carry no additional data.
var (
	ErrCancelled      = sentinel("the operation was cancelled")
	ErrCommand        = sentinel("the command could not be completed")
	ErrChannelClosed  = sentinel("the worker channel was closed")
	ErrNoPrompt       = sentinel("no password prompt is available")
	ErrStorageConflict = sentinel("store is bound to a different identifier")
)

type sentinelError string

func sentinel(msg string) error { return sentinelError(msg) }

func (e sentinelError) Error() string { return string(e) }

// GroupNotFound is returned when a group path cannot be resolved.
type GroupNotFound struct {
	Parent string
	Name   string
}

func (e *GroupNotFound) Error() string {
	return fmt.Sprintf("group %q not found under %q", e.Name, e.Parent)
}

// EntryNotFound is returned when an entry title cannot be resolved within a
// resolved group.
type EntryNotFound struct {
	Parent string
	Name   string
}

func (e *EntryNotFound) Error() string {
	return fmt.Sprintf("entry %q not found under %q", e.Name, e.Parent)
}

// Conversion describes a failure translating between wire and native
// representations: bad key-material length, bad hash length, invalid
// encoding, an out-of-range value, a numeric parse failure, or bad padding.
type Conversion struct {
	Kind    ConversionKind
	Message string
}

// ConversionKind enumerates the distinct conversion failure modes.
type ConversionKind int

const (
	ConversionKeyMaterialLength ConversionKind = iota
	ConversionHashLength
	ConversionEncoding
	ConversionRange
	ConversionNumericalRepresentation
	ConversionPadding
)

func (e *Conversion) Error() string {
	return fmt.Sprintf("conversion error (%v): %s", e.Kind, e.Message)
}

func (k ConversionKind) String() string {
	switch k {
	case ConversionKeyMaterialLength:
		return "key material length"
	case ConversionHashLength:
		return "hash length"
	case ConversionEncoding:
		return "encoding"
	case ConversionRange:
		return "range"
	case ConversionNumericalRepresentation:
		return "numerical representation"
	case ConversionPadding:
		return "padding"
	default:
		return "unknown"
	}
}

// Srp describes SRP-specific authentication failures.
type Srp struct {
	Message string
}

func (e *Srp) Error() string { return "srp: " + e.Message }

// ErrServerProofMismatch is returned by srp.Authenticate when the server's
// evidence does not match the client's expectation.
var ErrServerProofMismatch = &Srp{Message: "server proof mismatch"}

// ChallengeResponse describes key-resumption challenge/response failures.
type ChallengeResponse struct {
	Message string
}

func (e *ChallengeResponse) Error() string { return "challenge-response: " + e.Message }

var (
	ErrClientResponseMismatch = &ChallengeResponse{Message: "client response mismatch"}
	ErrServerResponseMismatch = &ChallengeResponse{Message: "server response mismatch"}
)

// Api describes protocol-manager-level failures common to both dialects.
type Api struct {
	Message string
}

func (e *Api) Error() string { return "api: " + e.Message }

var (
	ErrStreamEnded                = &Api{Message: "stream ended unexpectedly"}
	ErrUnhandledMessage           = &Api{Message: "received an unhandled message type"}
	ErrSecurityLevelTooLow        = &Api{Message: "server security level is below the required floor"}
	ErrMessageAuthenticationFailure = &Api{Message: "message authentication failed"}
	ErrInvalidNonce               = &Api{Message: "reply nonce did not match any pending call"}
)

// ServerError wraps an error reported by the remote backend. Name/Message
// are used for KeePassRPC; Code/Message for KeePassXC.
type ServerError struct {
	Name    string
	Message string
	Code    int
}

func (e *ServerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("server error %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("server error (code %d): %s", e.Code, e.Message)
}

// Storage describes session-store failures.
type Storage struct {
	Message string
}

func (e *Storage) Error() string { return "storage: " + e.Message }

// Password describes password-prompt failures beyond ErrNoPrompt/ErrCancelled.
type Password struct {
	Message string
}

func (e *Password) Error() string { return "password: " + e.Message }
