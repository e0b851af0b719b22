package models

import (
	"encoding/json"
	"fmt"
)

// DefaultProcessor names the payment processor in the idempotency key.
const DefaultProcessor = "stripe"

// IngestionRequest is what the gateway asks the downstream store to record.
// (Processor, EventID) is the idempotency key the store collapses duplicates on.
type IngestionRequest struct {
	Processor   string
	EventID     string
	EventType   string
	Payload     json.RawMessage
	Correlation CorrelationFields
}

// IdempotencyKey renders the composite key for logs and failure records.
func (r *IngestionRequest) IdempotencyKey() string {
	return r.Processor + ":" + r.EventID
}

// OutcomeKind tags an IngestionOutcome.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota + 1
	OutcomeDuplicate
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IngestionOutcome is the downstream verdict for one forward call.
type IngestionOutcome struct {
	Kind OutcomeKind
	// Record is the decoded downstream response; nil when the store returned nothing.
	Record json.RawMessage
	// StatusCode and Body are set for every response, including failures.
	StatusCode int
	Body       string
}

// Succeeded is true for Accepted and DuplicateIgnored.
func (o *IngestionOutcome) Succeeded() bool {
	return o != nil && (o.Kind == OutcomeAccepted || o.Kind == OutcomeDuplicate)
}
