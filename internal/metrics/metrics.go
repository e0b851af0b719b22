package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook handling
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_webhooks_total",
			Help: "Total number of webhook requests by result",
		},
		[]string{"result"},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_signature_failures_total",
			Help: "Total number of rejected webhook signatures by reason",
		},
		[]string{"reason"},
	)

	// Downstream ingestion
	ForwardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paygate_forward_duration_seconds",
			Help:    "Duration of ingestion RPC calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ForwardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_forward_outcomes_total",
			Help: "Total number of ingestion RPC outcomes",
		},
		[]string{"outcome"},
	)

	CorrelationFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_correlation_fields_total",
			Help: "Correlation field presence on verified events",
		},
		[]string{"field", "present"},
	)

	// Rate limiting
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paygate_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Failure records
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_dlq_writes_total",
			Help: "Total number of failure record writes by backend and status",
		},
		[]string{"backend", "status"},
	)
)

// Webhook results.
const (
	ResultAccepted         = "accepted"
	ResultDuplicate        = "duplicate"
	ResultMissingSignature = "missing_signature"
	ResultInvalidSignature = "invalid_signature"
	ResultMalformed        = "malformed"
	ResultMissingSecret    = "missing_secret"
	ResultIngestFailed     = "ingest_failed"
	ResultError            = "error"
)

// ObserveCorrelation counts which correlation fields were extracted.
func ObserveCorrelation(hasOwner, hasCustomer bool) {
	CorrelationFields.WithLabelValues("owner_uid", presence(hasOwner)).Inc()
	CorrelationFields.WithLabelValues("processor_customer_id", presence(hasCustomer)).Inc()
}

func presence(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
