package models

import "time"

// InboundWebhook is one delivery as received over HTTP. It is never persisted.
type InboundWebhook struct {
	Body       []byte
	Signature  string
	ReceivedAt time.Time
	SourceIP   string
}

// CorrelationFields are advisory identifiers linking an event to an internal
// account. Nil means absent.
type CorrelationFields struct {
	OwnerUID            *string
	ProcessorCustomerID *string
}

func (c CorrelationFields) HasOwner() bool    { return c.OwnerUID != nil }
func (c CorrelationFields) HasCustomer() bool { return c.ProcessorCustomerID != nil }
