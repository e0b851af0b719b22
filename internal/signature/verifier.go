// Package signature authenticates processor webhooks.
//
// The signed content is "{t}.{body}" under HMAC-SHA256 with the endpoint's
// signing secret. A delivery is accepted when any v1 digest in the header
// matches and the timestamp is no older than the tolerance. v0 digests are
// never sufficient on their own.
package signature

import (
	"crypto/hmac"
	"time"

	"github.com/telhawk-systems/paygate/internal/payload"
)

// DefaultTolerance bounds replay exposure for captured deliveries.
const DefaultTolerance = 5 * time.Minute

// VerifiedEvent is an event envelope whose bytes matched a signature.
// Its fields are unexported and Verifier is the only constructor, so holding
// one is proof of authentication.
type VerifiedEvent struct {
	id        string
	eventType string
	doc       payload.Value
	raw       []byte
	timestamp time.Time
}

func (e *VerifiedEvent) ID() string             { return e.id }
func (e *VerifiedEvent) Type() string           { return e.eventType }
func (e *VerifiedEvent) Payload() payload.Value { return e.doc }

// Timestamp is the envelope's "created" time, or the signing time when absent.
func (e *VerifiedEvent) Timestamp() time.Time { return e.timestamp }

// Raw returns the authenticated bytes. Callers must not modify the slice.
func (e *VerifiedEvent) Raw() []byte { return e.raw }

type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

type Option func(*Verifier)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(secret string, tolerance time.Duration, opts ...Option) *Verifier {
	v := &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidatePayload checks header against body and returns the signing time.
func (v *Verifier) ValidatePayload(body []byte, header string) (time.Time, error) {
	if v.secret == "" {
		return time.Time{}, ErrSecretNotConfigured
	}

	h, err := parseHeader(header)
	if err != nil {
		return time.Time{}, err
	}

	expected := ComputeSignature(h.timestamp, body, v.secret)

	if v.now().Sub(h.timestamp) > v.tolerance {
		return time.Time{}, ErrTimestampExpired
	}

	// Every candidate is compared; the loop never exits early.
	matched := false
	for _, sig := range h.signatures {
		if hmac.Equal(expected, sig) {
			matched = true
		}
	}
	if !matched {
		return time.Time{}, ErrMismatch
	}

	return h.timestamp, nil
}

// Verify authenticates body and decodes it as an event envelope.
func (v *Verifier) Verify(body []byte, header string) (*VerifiedEvent, error) {
	signedAt, err := v.ValidatePayload(body, header)
	if err != nil {
		return nil, err
	}

	doc, err := payload.Parse(body)
	if err != nil {
		return nil, &MalformedPayloadError{Detail: "invalid JSON", Err: err}
	}
	if doc.Kind() != payload.Object {
		return nil, &MalformedPayloadError{Detail: "event envelope is not an object"}
	}

	id, ok := doc.Get("id").AsString()
	if !ok || id == "" {
		return nil, &MalformedPayloadError{Detail: "missing event id"}
	}
	eventType, ok := doc.Get("type").AsString()
	if !ok || eventType == "" {
		return nil, &MalformedPayloadError{Detail: "missing event type"}
	}

	ts := signedAt
	if created, ok := doc.Get("created").AsInt64(); ok && created > 0 {
		ts = time.Unix(created, 0)
	}

	return &VerifiedEvent{
		id:        id,
		eventType: eventType,
		doc:       doc,
		raw:       body,
		timestamp: ts,
	}, nil
}
