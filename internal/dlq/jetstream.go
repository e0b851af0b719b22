package dlq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/paygate/internal/logging"
	"github.com/telhawk-systems/paygate/internal/metrics"
)

const (
	StreamName    = "PAYGATE_DLQ"
	SubjectPrefix = "paygate.dlq."
)

// StreamConfig is the stream failure records are published to.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
}

// Subject routes a record by failure reason.
func Subject(reason string) string {
	if reason == "" {
		reason = "unknown"
	}
	return SubjectPrefix + reason
}

// JetStreamQueue publishes failure records to NATS JetStream.
// Safe for use across multiple gateway instances.
type JetStreamQueue struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	logger  *logging.Logger
	written atomic.Uint64
}

// DialJetStream connects to url and prepares the DLQ stream.
func DialJetStream(ctx context.Context, url string, logger *logging.Logger) (*JetStreamQueue, error) {
	conn, err := nats.Connect(url,
		nats.Name("paygate-dlq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	q, err := NewJetStreamQueue(ctx, js, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.conn = conn
	return q, nil
}

// NewJetStreamQueue creates or updates the DLQ stream on js.
func NewJetStreamQueue(ctx context.Context, js jetstream.JetStream, logger *logging.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	stream, err := js.CreateOrUpdateStream(ctx, StreamConfig())
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	logger.Info("dlq stream ready", "stream", StreamName)

	return &JetStreamQueue{
		js:     js,
		stream: stream,
		logger: logger,
	}, nil
}

// Write publishes record and waits for the stream ack.
func (q *JetStreamQueue) Write(ctx context.Context, record *FailedDelivery) error {
	if q == nil || record == nil {
		return nil
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	data, err := gojson.Marshal(record)
	if err != nil {
		metrics.DLQWrites.WithLabelValues(BackendJetStream, "error").Inc()
		return fmt.Errorf("marshal dlq record: %w", err)
	}

	// The message ID makes redelivered publishes of one failure collapse.
	msgID := fmt.Sprintf("%s:%s:%d", record.Processor, record.EventID, record.Timestamp.UnixNano())
	if _, err := q.js.Publish(ctx, Subject(record.Reason), data, jetstream.WithMsgID(msgID)); err != nil {
		metrics.DLQWrites.WithLabelValues(BackendJetStream, "error").Inc()
		q.logger.ErrorContext(ctx, "failed to publish dlq record", logging.Error(err))
		return fmt.Errorf("publish dlq record: %w", err)
	}

	q.written.Add(1)
	metrics.DLQWrites.WithLabelValues(BackendJetStream, "ok").Inc()
	q.logger.InfoContext(ctx, "dlq record published",
		logging.EventID(record.EventID),
		logging.Reason(record.Reason),
	)
	return nil
}

// Stats returns DLQ metrics from JetStream.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{
			"enabled": false,
			"backend": BackendJetStream,
		}
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		return map[string]interface{}{
			"enabled":       true,
			"backend":       BackendJetStream,
			"written_local": q.written.Load(),
			"error":         err.Error(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"backend":        BackendJetStream,
		"written_local":  q.written.Load(),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
	}
}

// Close drains the connection when the queue owns it.
func (q *JetStreamQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	return q.conn.Drain()
}
