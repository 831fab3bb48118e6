// Package client implements the protocol core for the Dyson cloud
// device-management API: the challenge/response OTP login flow, bearer
// credential handling, the account device catalog, and local broker
// credential decryption.
package client

import (
	"errors"
	"fmt"
)

// Sentinel error kinds callers branch on with errors.Is.
var (
	// ErrAuthRejected marks auth parameters the backend (or a local
	// pre-check) considered malformed.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrAuthUnauthorized marks credentials, tokens or OTP codes the
	// backend did not accept.
	ErrAuthUnauthorized = errors.New("unauthorized")
)

// AuthError is an authentication failure of one of the sentinel kinds.
type AuthError struct {
	Kind error
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *AuthError) Unwrap() error { return e.Kind }

func rejected(format string, args ...any) *AuthError {
	return &AuthError{Kind: ErrAuthRejected, Msg: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...any) *AuthError {
	return &AuthError{Kind: ErrAuthUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// TransportError wraps a connection-level failure surfaced by the underlying
// HTTP transport. It is passed through unmodified; this library performs no
// retries.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports an unexpected HTTP status from the backend that does not
// map onto the auth taxonomy.
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected API response (status %d): %s", e.StatusCode, e.Msg)
}

// DecryptStage identifies which stage of local-credential decryption failed.
type DecryptStage string

const (
	StageBase64       DecryptStage = "base64"
	StageCipher       DecryptStage = "cipher"
	StageJSONExtract  DecryptStage = "json-extract"
	StageFieldMissing DecryptStage = "field-missing"
)

// DecryptionError reports a failure while decrypting a device's local broker
// credential blob. The decrypted plaintext, when one was produced, is
// available through Plaintext for diagnostics but is deliberately kept out
// of the Error string: it is sensitive material.
type DecryptionError struct {
	Stage     DecryptStage
	Msg       string
	plaintext string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("local credential decryption failed at %s stage: %s", e.Stage, e.Msg)
}

// Plaintext returns the full decrypted text captured before the failure, or
// an empty string if decryption never got that far.
func (e *DecryptionError) Plaintext() string { return e.plaintext }
