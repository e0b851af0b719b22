package ingestclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/telhawk-systems/paygate/internal/models"
	"github.com/telhawk-systems/paygate/internal/payload"
)

// DefaultRPCPath is the PostgREST route of the idempotent ingestion function.
const DefaultRPCPath = "/rest/v1/rpc/ingest_payment_event"

// maxResponseBytes caps how much of a downstream response is read and echoed.
const maxResponseBytes = 64 << 10

// Client forwards verified events to the downstream ingestion RPC.
// It makes exactly one HTTP attempt per Forward call.
type Client struct {
	endpoint   string
	serviceKey string
	httpClient *http.Client
}

func New(baseURL, rpcPath, serviceKey string, timeout time.Duration) *Client {
	if rpcPath == "" {
		rpcPath = DefaultRPCPath
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(rpcPath, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IngestRequest is the wire body. Every key is always sent; absent
// correlation fields are encoded as null.
type IngestRequest struct {
	Processor           string          `json:"p_processor"`
	ProcessorEventID    string          `json:"p_processor_event_id"`
	EventType           string          `json:"p_event_type"`
	Payload             json.RawMessage `json:"p_payload"`
	OwnerUID            *string         `json:"p_owner_uid"`
	ProcessorCustomerID *string         `json:"p_processor_customer_id"`
}

// DownstreamError is a non-2xx answer from the ingestion RPC.
type DownstreamError struct {
	StatusCode int
	Body       string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("INGEST_FAILED:%d:%s", e.StatusCode, e.Body)
}

// Forward submits req and classifies the response. A non-nil error always
// accompanies OutcomeFailed; transport failures return a nil outcome.
func (c *Client) Forward(ctx context.Context, req *models.IngestionRequest) (*models.IngestionOutcome, error) {
	if c == nil {
		return nil, fmt.Errorf("ingest client not configured")
	}
	if req == nil {
		return nil, errors.New("ingest request is nil")
	}

	body := IngestRequest{
		Processor:           req.Processor,
		ProcessorEventID:    req.EventID,
		EventType:           req.EventType,
		Payload:             req.Payload,
		OwnerUID:            req.Correlation.OwnerUID,
		ProcessorCustomerID: req.Correlation.ProcessorCustomerID,
	}
	if len(body.Payload) == 0 {
		body.Payload = json.RawMessage("null")
	}

	bodyBytes, err := gojson.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("apikey", c.serviceKey)
	request.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return classify(resp.StatusCode, raw)
}

func classify(status int, raw []byte) (*models.IngestionOutcome, error) {
	text := string(raw)
	outcome := &models.IngestionOutcome{StatusCode: status, Body: text}

	// Only an explicit duplicate flag on a 2xx means already ingested.
	// PostgREST answers 409 for foreign key violations too.
	if status < 200 || status > 299 {
		outcome.Kind = models.OutcomeFailed
		return outcome, &DownstreamError{StatusCode: status, Body: text}
	}

	record, duplicate, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	outcome.Record = record
	outcome.Kind = models.OutcomeAccepted
	if duplicate {
		outcome.Kind = models.OutcomeDuplicate
	}
	return outcome, nil
}

// decodeRecord validates a 2xx body. Empty, null and {} bodies carry no record.
func decodeRecord(raw []byte) (json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, nil
	}

	doc, err := payload.Parse(trimmed)
	if err != nil {
		return nil, false, err
	}

	switch doc.Kind() {
	case payload.Null:
		return nil, false, nil
	case payload.Object:
		if doc.Len() == 0 {
			return nil, false, nil
		}
		dup, _ := doc.Get("duplicate").AsBool()
		return json.RawMessage(trimmed), dup, nil
	default:
		return json.RawMessage(trimmed), false, nil
	}
}
