package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/telhawk-systems/paygate/internal/middleware"
)

// Redacted replaces the value of any attribute whose key names a secret or
// a correlation identifier.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"secret":                {},
	"webhook_secret":        {},
	"service_key":           {},
	"apikey":                {},
	"authorization":         {},
	"stripe-signature":      {},
	"signature":             {},
	"payload":               {},
	"body":                  {},
	"owner_uid":             {},
	"customer":              {},
	"customer_id":           {},
	"processor_customer_id": {},
}

// Logger is a slog.Logger that picks the request ID up from the context
// and never prints secrets or correlation values.
type Logger struct {
	*slog.Logger
}

// New writes to stdout. format is "json" (default) or "text".
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelError,
		ReplaceAttr: redact,
	}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}

func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// WithContext returns a logger carrying the request ID found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		return l.Logger.With(RequestID(reqID))
	}
	return l.Logger
}

// ForDelivery scopes a logger to one webhook delivery. Only identifiers
// are attached; the event body stays out of the log.
func (l *Logger) ForDelivery(ctx context.Context, processor, eventID, eventType string) *Logger {
	return &Logger{Logger: l.WithContext(ctx).With(
		Processor(processor),
		EventID(eventID),
		EventType(eventType),
	)}
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel accepts debug, info, warn(ing) and error in any case.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as slog's default, which also routes the log package.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
