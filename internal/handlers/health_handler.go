package handlers

import (
	"context"
	"net/http"

	"github.com/telhawk-systems/paygate/internal/httputil"
)

// DLQStats is the read side of a failure record backend.
type DLQStats interface {
	Stats(ctx context.Context) map[string]interface{}
}

type HealthHandler struct {
	version    string
	secretsErr error
	dlq        DLQStats
}

type HealthOption func(*HealthHandler)

// WithDLQStats reports the failure record backend in the readiness body.
func WithDLQStats(s DLQStats) HealthOption {
	return func(h *HealthHandler) { h.dlq = s }
}

func NewHealthHandler(version string, secretsErr error, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{version: version, secretsErr: secretsErr}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health reports liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports 503 while the gateway runs without its secrets.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ready"}
	if h.dlq != nil {
		body["dlq"] = h.dlq.Stats(r.Context())
	}

	if h.secretsErr != nil {
		body["status"] = "degraded"
		body["error"] = h.secretsErr.Error()
		httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}
