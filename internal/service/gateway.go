// Package service runs one webhook delivery through verification, correlation
// and ingestion.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/paygate/internal/dlq"
	"github.com/telhawk-systems/paygate/internal/extractor"
	"github.com/telhawk-systems/paygate/internal/ingestclient"
	"github.com/telhawk-systems/paygate/internal/logging"
	"github.com/telhawk-systems/paygate/internal/metrics"
	"github.com/telhawk-systems/paygate/internal/middleware"
	"github.com/telhawk-systems/paygate/internal/models"
	"github.com/telhawk-systems/paygate/internal/signature"
)

// DefaultForwardTimeout bounds the outbound ingestion call.
const DefaultForwardTimeout = 5 * time.Second

// Stage names a step of the per-request lifecycle.
type Stage string

const (
	StageReceived   Stage = "received"
	StageVerifying  Stage = "verifying"
	StageRejected   Stage = "rejected"
	StageVerified   Stage = "verified"
	StageExtracting Stage = "extracting"
	StageForwarding Stage = "forwarding"
	StageResponded  Stage = "responded"
)

// Forwarder submits an ingestion request. *ingestclient.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, req *models.IngestionRequest) (*models.IngestionOutcome, error)
}

// Result describes a delivery the downstream store accepted or collapsed.
type Result struct {
	EventID     string
	EventType   string
	Correlation models.CorrelationFields
	Outcome     *models.IngestionOutcome
}

// Duplicate reports whether the store had already recorded the event.
func (r *Result) Duplicate() bool {
	return r != nil && r.Outcome != nil && r.Outcome.Kind == models.OutcomeDuplicate
}

type GatewayService struct {
	verifier  *signature.Verifier
	forwarder Forwarder
	dlq       dlq.Writer
	processor string
	timeout   time.Duration
	logger    *logging.Logger
}

type Option func(*GatewayService)

// WithDLQ records Failed outcomes to w.
func WithDLQ(w dlq.Writer) Option {
	return func(s *GatewayService) { s.dlq = w }
}

func WithProcessor(name string) Option {
	return func(s *GatewayService) {
		if name != "" {
			s.processor = name
		}
	}
}

func WithForwardTimeout(d time.Duration) Option {
	return func(s *GatewayService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *GatewayService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewGatewayService(verifier *signature.Verifier, forwarder Forwarder, opts ...Option) *GatewayService {
	s := &GatewayService{
		verifier:  verifier,
		forwarder: forwarder,
		processor: models.DefaultProcessor,
		timeout:   DefaultForwardTimeout,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process authenticates in, extracts correlation fields and forwards the event
// exactly once. Errors are signature.Error, *signature.MalformedPayloadError,
// *ingestclient.DownstreamError or an unexpected failure.
func (s *GatewayService) Process(ctx context.Context, in models.InboundWebhook) (*Result, error) {
	log := s.logger.WithContext(ctx).With(logging.Processor(s.processor))
	log.Debug("webhook received", "stage", StageReceived, logging.IP(in.SourceIP))

	if s.verifier == nil || s.forwarder == nil {
		return nil, errors.New("gateway not configured")
	}

	if in.Signature == "" {
		s.reject(ctx, signature.ErrMissingHeader)
		return nil, signature.ErrMissingHeader
	}

	log.Debug("verifying signature", "stage", StageVerifying)
	event, err := s.verifier.Verify(in.Body, in.Signature)
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}
	log = s.logger.ForDelivery(ctx, s.processor, event.ID(), event.Type()).Logger
	log.Debug("signature verified", "stage", StageVerified)

	log.Debug("extracting correlation", "stage", StageExtracting)
	corr := extractor.Extract(event.Payload())
	metrics.ObserveCorrelation(corr.HasOwner(), corr.HasCustomer())

	req := &models.IngestionRequest{
		Processor:   s.processor,
		EventID:     event.ID(),
		EventType:   event.Type(),
		Payload:     json.RawMessage(event.Raw()),
		Correlation: corr,
	}

	log.Debug("forwarding event", "stage", StageForwarding)
	outcome, err := s.forward(ctx, req)
	if err != nil {
		log.Error("ingestion failed",
			"stage", StageResponded,
			logging.Correlation(corr.HasOwner(), corr.HasCustomer()),
			logging.Error(err),
		)
		s.recordFailure(ctx, req, outcome, err)
		return nil, err
	}

	log.Info("event ingested",
		"stage", StageResponded,
		logging.Outcome(outcome.Kind.String()),
		logging.Correlation(corr.HasOwner(), corr.HasCustomer()),
	)

	return &Result{
		EventID:     event.ID(),
		EventType:   event.Type(),
		Correlation: corr,
		Outcome:     outcome,
	}, nil
}

// forward detaches from the caller's cancellation: a client disconnect must
// not abort an ingestion that may already have side effects.
func (s *GatewayService) forward(ctx context.Context, req *models.IngestionRequest) (*models.IngestionOutcome, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	outcome, err := s.forwarder.Forward(fctx, req)
	metrics.ForwardDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil && outcome != nil:
		metrics.ForwardOutcomes.WithLabelValues(outcome.Kind.String()).Inc()
		return outcome, err
	case err != nil:
		metrics.ForwardOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("forward %s: %w", req.IdempotencyKey(), err)
	case outcome == nil:
		metrics.ForwardOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("forward %s: no outcome", req.IdempotencyKey())
	case !outcome.Succeeded():
		metrics.ForwardOutcomes.WithLabelValues(outcome.Kind.String()).Inc()
		return outcome, &ingestclient.DownstreamError{StatusCode: outcome.StatusCode, Body: outcome.Body}
	}

	metrics.ForwardOutcomes.WithLabelValues(outcome.Kind.String()).Inc()
	return outcome, nil
}

func (s *GatewayService) reject(ctx context.Context, err error) {
	reason := signature.ReasonOf(err)
	log := s.logger.WithContext(ctx)
	switch {
	case reason != "":
		metrics.SignatureFailures.WithLabelValues(string(reason)).Inc()
		log.Warn("webhook rejected", "stage", StageRejected, logging.Reason(string(reason)))
	default:
		log.Warn("webhook rejected", "stage", StageRejected, logging.Error(err))
	}
}

func (s *GatewayService) recordFailure(ctx context.Context, req *models.IngestionRequest, outcome *models.IngestionOutcome, err error) {
	if s.dlq == nil {
		return
	}

	record := &dlq.FailedDelivery{
		Timestamp: time.Now().UTC(),
		Processor: req.Processor,
		EventID:   req.EventID,
		EventType: req.EventType,
		Reason:    "transport_error",
		Error:     err.Error(),
		RequestID: middleware.GetRequestID(ctx),
	}
	var downstream *ingestclient.DownstreamError
	if errors.As(err, &downstream) {
		record.Reason = "ingest_failed"
		record.StatusCode = downstream.StatusCode
	} else if outcome != nil {
		record.StatusCode = outcome.StatusCode
	}

	if werr := s.dlq.Write(context.WithoutCancel(ctx), record); werr != nil {
		s.logger.ErrorContext(ctx, "failed to write dlq record", logging.EventID(req.EventID), logging.Error(werr))
	}
}
