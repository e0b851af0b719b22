package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/paygate/internal/middleware"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  slog.Level
		format string
	}{
		{name: "json format with info level", level: slog.LevelInfo, format: "json"},
		{name: "text format with debug level", level: slog.LevelDebug, format: "text"},
		{name: "default format (json) with error level", level: slog.LevelError, format: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			require.NotNil(t, logger)
			require.NotNil(t, logger.Logger)
		})
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	logger.InfoContext(ctx, "webhook received")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line[FieldRequestID])
	assert.Equal(t, "webhook received", line["msg"])
}

func TestWithContext_NoRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.InfoContext(context.Background(), "no id")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, ok := line[FieldRequestID]
	assert.False(t, ok)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "text")

	logger.InfoContext(context.Background(), "dropped")
	assert.Empty(t, buf.String())

	logger.WarnContext(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "WARN")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("paygate"))

	logger.Info("started")
	assert.Contains(t, buf.String(), `"service":"paygate"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"WARNING": slog.LevelWarn,
		" Debug ": slog.LevelDebug,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{Service("paygate"), FieldService, "paygate"},
		{EventID("evt_1"), FieldEventID, "evt_1"},
		{EventType("invoice.paid"), FieldEventType, "invoice.paid"},
		{Processor("stripe"), FieldProcessor, "stripe"},
		{Outcome("accepted"), FieldOutcome, "accepted"},
		{Reason("timestamp_expired"), FieldReason, "timestamp_expired"},
		{Error(errors.New("boom")), FieldError, "boom"},
		{Path("/webhooks/stripe"), FieldPath, "/webhooks/stripe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantKey, tt.attr.Key)
		assert.Equal(t, tt.wantVal, tt.attr.Value.String())
	}

	assert.Equal(t, int64(1500), Duration(1500*time.Millisecond).Value.Int64())
	assert.Equal(t, int64(400), Status(400).Value.Int64())
}

func TestCorrelation_NeverCarriesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.Info("extracted", Correlation(true, false))

	out := buf.String()
	assert.Contains(t, out, `"has_owner_uid":true`)
	assert.Contains(t, out, `"has_customer_id":false`)
}

func TestRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.Info("forwarding",
		"service_key", "eyJhbGciOi",
		"Authorization", "Bearer eyJhbGciOi",
		"owner_uid", "0123456789abcdef0123456789abcdef",
		"customer", "cus_ABC123",
		"payload", `{"id":"evt_1"}`,
		EventID("evt_1"),
	)

	out := buf.String()
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.NotContains(t, out, "cus_ABC123")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, Redacted, line["service_key"])
	assert.Equal(t, Redacted, line["Authorization"])
	assert.Equal(t, Redacted, line["payload"])
	assert.Equal(t, "evt_1", line[FieldEventID])
}

func TestForDelivery(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-9")

	logger.ForDelivery(ctx, "stripe", "evt_9", "charge.refunded").Info("forwarded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-9", line[FieldRequestID])
	assert.Equal(t, "stripe", line[FieldProcessor])
	assert.Equal(t, "evt_9", line[FieldEventID])
	assert.Equal(t, "charge.refunded", line[FieldEventType])
}
