package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/paygate/internal/handlers"
	"github.com/telhawk-systems/paygate/internal/middleware"
)

// Routes holds the handlers the router mounts.
type Routes struct {
	WebhookPath string
	Webhook     *handlers.WebhookHandler
	Health      *handlers.HealthHandler
	// WebhookMiddleware wraps only the webhook route, e.g. the rate limiter.
	WebhookMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs a ServeMux with gateway routes registered.
func NewRouter(r Routes) http.Handler {
	mux := http.NewServeMux()

	path := r.WebhookPath
	if path == "" {
		path = "/webhooks/stripe"
	}

	var webhook http.Handler = http.HandlerFunc(r.Webhook.HandleWebhook)
	if r.WebhookMiddleware != nil {
		webhook = r.WebhookMiddleware(webhook)
	}
	mux.Handle(path, webhook)

	// Health endpoints
	mux.HandleFunc("/healthz", r.Health.Health)
	mux.HandleFunc("/readyz", r.Health.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
