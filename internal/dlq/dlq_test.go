package dlq_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/paygate/internal/dlq"
	"github.com/telhawk-systems/paygate/internal/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(&bytes.Buffer{}, slog.LevelError, "json")
}

func testRecord(id string) *dlq.FailedDelivery {
	return &dlq.FailedDelivery{
		Processor:  "stripe",
		EventID:    id,
		EventType:  "invoice.paid",
		StatusCode: 500,
		Reason:     "ingest_failed",
		Error:      "INGEST_FAILED:500:db error",
		RequestID:  "req-1",
	}
}

func TestNewFileQueue(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("creates queue with valid path", func(t *testing.T) {
		queue, err := dlq.NewFileQueue(tempDir, quietLogger())
		require.NoError(t, err)
		assert.NotNil(t, queue)
	})

	t.Run("creates nested directories", func(t *testing.T) {
		nestedPath := filepath.Join(tempDir, "nested", "path", "dlq")
		queue, err := dlq.NewFileQueue(nestedPath, nil)
		require.NoError(t, err)
		assert.NotNil(t, queue)

		info, err := os.Stat(nestedPath)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		file := filepath.Join(tempDir, "occupied")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := dlq.NewFileQueue(filepath.Join(file, "dlq"), nil)
		assert.Error(t, err)
	})
}

func TestFileQueue_Write(t *testing.T) {
	tempDir := t.TempDir()
	queue, err := dlq.NewFileQueue(tempDir, quietLogger())
	require.NoError(t, err)

	err = queue.Write(context.Background(), testRecord("evt_1"))
	require.NoError(t, err)

	files, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, files, 1, "one DLQ file should be created")
	assert.True(t, strings.HasPrefix(files[0].Name(), "failed_"))
	assert.True(t, strings.HasSuffix(files[0].Name(), ".json"))

	data, err := os.ReadFile(filepath.Join(tempDir, files[0].Name()))
	require.NoError(t, err)

	var rec dlq.FailedDelivery
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "evt_1", rec.EventID)
	assert.Equal(t, "stripe", rec.Processor)
	assert.Equal(t, "invoice.paid", rec.EventType)
	assert.Equal(t, 500, rec.StatusCode)
	assert.Equal(t, "ingest_failed", rec.Reason)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestFileQueue_Write_NoPayloadField(t *testing.T) {
	tempDir := t.TempDir()
	queue, err := dlq.NewFileQueue(tempDir, quietLogger())
	require.NoError(t, err)

	require.NoError(t, queue.Write(context.Background(), testRecord("evt_2")))

	files, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(tempDir, files[0].Name()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "payload")
	assert.ElementsMatch(t,
		[]string{"timestamp", "processor", "event_id", "event_type", "status_code", "reason", "error", "request_id"},
		keys(raw),
	)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestFileQueue_Write_KeepsTimestamp(t *testing.T) {
	queue, err := dlq.NewFileQueue(t.TempDir(), quietLogger())
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := testRecord("evt_ts")
	rec.Timestamp = ts
	require.NoError(t, queue.Write(context.Background(), rec))

	records, err := queue.List(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, ts.Equal(records[0].Timestamp))
}

func TestFileQueue_Write_MultipleRecords(t *testing.T) {
	tempDir := t.TempDir()
	queue, err := dlq.NewFileQueue(tempDir, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Write(ctx, testRecord("evt_same")))
	}

	files, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, files, 5, "five DLQ files should be created")
}

func TestFileQueue_NilSafety(t *testing.T) {
	var queue *dlq.FileQueue

	assert.NoError(t, queue.Write(context.Background(), testRecord("evt_nil")), "nil queue should not error")
	assert.NoError(t, queue.Close())

	_, err := queue.List(10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")

	stats := queue.Stats(context.Background())
	assert.Equal(t, false, stats["enabled"])

	enabled, err := dlq.NewFileQueue(t.TempDir(), quietLogger())
	require.NoError(t, err)
	assert.NoError(t, enabled.Write(context.Background(), nil))
}

func TestFileQueue_List(t *testing.T) {
	tempDir := t.TempDir()
	queue, err := dlq.NewFileQueue(tempDir, quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"evt_a", "evt_b", "evt_c"} {
		rec := testRecord(id)
		rec.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, queue.Write(ctx, rec))
	}

	// Stray files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "failed_0_0.json"), []byte("{broken"), 0o600))

	records, err := queue.List(10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "evt_a", records[0].EventID)
	assert.Equal(t, "evt_c", records[2].EventID)

	limited, err := queue.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFileQueue_Stats(t *testing.T) {
	tempDir := t.TempDir()
	queue, err := dlq.NewFileQueue(tempDir, quietLogger())
	require.NoError(t, err)

	stats := queue.Stats(context.Background())
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, dlq.BackendFile, stats["backend"])
	assert.Equal(t, uint64(0), stats["written"])
	assert.Equal(t, 0, stats["pending_files"])
	assert.Equal(t, tempDir, stats["base_path"])

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Write(context.Background(), testRecord("evt")))
	}

	stats = queue.Stats(context.Background())
	assert.Equal(t, uint64(3), stats["written"])
	assert.Equal(t, 3, stats["pending_files"])
}

func TestFileQueue_ImplementsWriter(t *testing.T) {
	var _ dlq.Writer = (*dlq.FileQueue)(nil)
	var _ dlq.Writer = (*dlq.JetStreamQueue)(nil)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "paygate.dlq.ingest_failed", dlq.Subject("ingest_failed"))
	assert.Equal(t, "paygate.dlq.unknown", dlq.Subject(""))
}

func TestStreamConfig(t *testing.T) {
	cfg := dlq.StreamConfig()
	assert.Equal(t, dlq.StreamName, cfg.Name)
	assert.Equal(t, []string{"paygate.dlq.>"}, cfg.Subjects)
	assert.Equal(t, jetstream.LimitsPolicy, cfg.Retention)
	assert.Equal(t, jetstream.FileStorage, cfg.Storage)
	assert.True(t, cfg.MaxAge > 0)
}

func TestJetStreamQueue_NilSafety(t *testing.T) {
	var queue *dlq.JetStreamQueue

	assert.NoError(t, queue.Write(context.Background(), testRecord("evt")))
	assert.NoError(t, queue.Close())
	assert.Equal(t, false, queue.Stats(context.Background())["enabled"])

	_, err := dlq.NewJetStreamQueue(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestDialJetStream_Unreachable(t *testing.T) {
	_, err := dlq.DialJetStream(context.Background(), "nats://127.0.0.1:1", quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to NATS")
}
