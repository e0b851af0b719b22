package signature

import (
	"errors"
	"fmt"
)

// Reason classifies why a signature was rejected.
type Reason string

const (
	ReasonMissingHeader    Reason = "missing_header"
	ReasonInvalidHeader    Reason = "invalid_header"
	ReasonNoSignatures     Reason = "no_v1_signature"
	ReasonTimestampExpired Reason = "timestamp_expired"
	ReasonMismatch         Reason = "signature_mismatch"
)

// Error is returned for every authentication failure. Callers answer 400.
type Error struct {
	Reason Reason
}

func (e *Error) Error() string {
	return "signature: " + string(e.Reason)
}

var (
	ErrMissingHeader    = &Error{Reason: ReasonMissingHeader}
	ErrInvalidHeader    = &Error{Reason: ReasonInvalidHeader}
	ErrNoSignatures     = &Error{Reason: ReasonNoSignatures}
	ErrTimestampExpired = &Error{Reason: ReasonTimestampExpired}
	ErrMismatch         = &Error{Reason: ReasonMismatch}
)

// ErrSecretNotConfigured means the verifier was built without a secret.
// It is a server fault, not a client one: an empty HMAC key is trivially forgeable.
var ErrSecretNotConfigured = errors.New("signature: signing secret not configured")

// MalformedPayloadError reports authentic bytes that are not a usable event
// envelope. A valid signature proves origin, not structure.
type MalformedPayloadError struct {
	Detail string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload: %s: %v", e.Detail, e.Err)
	}
	return "malformed payload: " + e.Detail
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// ReasonOf extracts the rejection reason from err, or "" when err is not a signature failure.
func ReasonOf(err error) Reason {
	var sigErr *Error
	if errors.As(err, &sigErr) {
		return sigErr.Reason
	}
	return ""
}
