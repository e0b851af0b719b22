// Package dlq records webhook deliveries the ingestion store refused.
//
// Records are an audit trail: they carry identifiers and the downstream
// verdict but never the event payload, and nothing replays them.
package dlq

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/telhawk-systems/paygate/internal/logging"
	"github.com/telhawk-systems/paygate/internal/metrics"
)

const (
	BackendFile      = "file"
	BackendJetStream = "jetstream"

	DefaultBasePath = "/var/lib/paygate/dlq"
)

// FailedDelivery is one failure record.
type FailedDelivery struct {
	Timestamp  time.Time `json:"timestamp"`
	Processor  string    `json:"processor"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	StatusCode int       `json:"status_code,omitempty"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Writer persists failure records.
type Writer interface {
	Write(ctx context.Context, record *FailedDelivery) error
	Stats(ctx context.Context) map[string]interface{}
	Close() error
}

// FileQueue writes one JSON file per record under basePath.
type FileQueue struct {
	basePath string
	logger   *logging.Logger
	written  atomic.Uint64
}

// NewFileQueue creates basePath if needed. An empty path uses DefaultBasePath.
func NewFileQueue(basePath string, logger *logging.Logger) (*FileQueue, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if logger == nil {
		logger = logging.Default()
	}

	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}

	return &FileQueue{basePath: basePath, logger: logger}, nil
}

// Write stores record. A nil queue discards it.
func (q *FileQueue) Write(ctx context.Context, record *FailedDelivery) error {
	if q == nil || record == nil {
		return nil
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	data, err := gojson.MarshalIndent(record, "", "  ")
	if err != nil {
		metrics.DLQWrites.WithLabelValues(BackendFile, "error").Inc()
		return fmt.Errorf("marshal dlq record: %w", err)
	}

	seq := q.written.Add(1)
	name := fmt.Sprintf("failed_%d_%d.json", record.Timestamp.UnixNano(), seq)
	path := filepath.Join(q.basePath, name)

	// Write to a temp name first so readers never see a partial record.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		metrics.DLQWrites.WithLabelValues(BackendFile, "error").Inc()
		return fmt.Errorf("write dlq record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		metrics.DLQWrites.WithLabelValues(BackendFile, "error").Inc()
		return fmt.Errorf("commit dlq record: %w", err)
	}

	metrics.DLQWrites.WithLabelValues(BackendFile, "ok").Inc()
	q.logger.InfoContext(ctx, "dlq record written",
		logging.EventID(record.EventID),
		logging.Reason(record.Reason),
		logging.Status(record.StatusCode),
	)
	return nil
}

// List returns up to limit records, oldest first.
func (q *FileQueue) List(limit int) ([]FailedDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}
	if limit <= 0 {
		limit = 100
	}

	entries, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "failed_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]FailedDelivery, 0, min(limit, len(names)))
	for _, name := range names {
		if len(records) >= limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(q.basePath, name))
		if err != nil {
			q.logger.Warn("unreadable dlq record", "file", name, logging.Error(err))
			continue
		}
		var rec FailedDelivery
		if err := gojson.Unmarshal(data, &rec); err != nil {
			q.logger.Warn("corrupt dlq record", "file", name, logging.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stats reports counters for diagnostics.
func (q *FileQueue) Stats(_ context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{
			"enabled": false,
			"backend": BackendFile,
		}
	}

	pending := 0
	if entries, err := os.ReadDir(q.basePath); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				pending++
			}
		}
	}

	return map[string]interface{}{
		"enabled":       true,
		"backend":       BackendFile,
		"written":       q.written.Load(),
		"pending_files": pending,
		"base_path":     q.basePath,
	}
}

func (q *FileQueue) Close() error { return nil }
