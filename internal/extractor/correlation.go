// Package extractor derives correlation identifiers from untrusted event payloads.
package extractor

import (
	"unicode/utf16"

	"github.com/telhawk-systems/paygate/internal/models"
	"github.com/telhawk-systems/paygate/internal/payload"
)

const (
	// MinOwnerUIDLength filters placeholder and truncated owner identifiers.
	MinOwnerUIDLength = 32
	// MinCustomerIDLength is the shortest processor customer reference accepted.
	MinCustomerIDLength = 6
)

// Extract reads the owner UID and processor customer ID from the event's
// data.object. It never fails: any missing path, null, or non-string value
// leaves the corresponding field absent.
func Extract(event payload.Value) models.CorrelationFields {
	obj := event.Path("data", "object")

	return models.CorrelationFields{
		OwnerUID:            ownerUID(obj),
		ProcessorCustomerID: customerID(obj),
	}
}

// ownerUID prefers metadata.owner_uid and falls back to metadata.OWNER_UID
// only when the canonical key is absent or null.
func ownerUID(obj payload.Value) *string {
	meta := obj.Get("metadata")
	return minLengthString(payload.Coalesce(meta.Get("owner_uid"), meta.Get("OWNER_UID")), MinOwnerUIDLength)
}

func customerID(obj payload.Value) *string {
	return minLengthString(payload.Coalesce(obj.Get("customer"), obj.Get("customer_id")), MinCustomerIDLength)
}

func minLengthString(v payload.Value, minLen int) *string {
	s, ok := v.AsString()
	if !ok || utf16Len(s) < minLen {
		return nil
	}
	return &s
}

// utf16Len measures s in UTF-16 code units, the unit the downstream
// store and the processor's dashboards use for string length.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
