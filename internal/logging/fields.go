package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every log line the gateway writes.
// Payload contents, owner UIDs and customer IDs are never logged; only their presence is.
const (
	FieldService     = "service"
	FieldRequestID   = "request_id"
	FieldIP          = "ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldEventID     = "event_id"
	FieldEventType   = "event_type"
	FieldProcessor   = "processor"
	FieldOutcome     = "outcome"
	FieldReason      = "reason"
	FieldHasOwner    = "has_owner_uid"
	FieldHasCustomer = "has_customer_id"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

func Processor(name string) slog.Attr {
	return slog.String(FieldProcessor, name)
}

func Outcome(o string) slog.Attr {
	return slog.String(FieldOutcome, o)
}

func Reason(r string) slog.Attr {
	return slog.String(FieldReason, r)
}

// Correlation reports which correlation fields were found without revealing them.
func Correlation(hasOwner, hasCustomer bool) slog.Attr {
	return slog.Group("correlation",
		slog.Bool(FieldHasOwner, hasOwner),
		slog.Bool(FieldHasCustomer, hasCustomer),
	)
}
