package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/paygate/internal/config"
	"github.com/telhawk-systems/paygate/internal/httputil"
	"github.com/telhawk-systems/paygate/internal/ingestclient"
	"github.com/telhawk-systems/paygate/internal/logging"
	"github.com/telhawk-systems/paygate/internal/metrics"
	"github.com/telhawk-systems/paygate/internal/models"
	"github.com/telhawk-systems/paygate/internal/ratelimit"
	"github.com/telhawk-systems/paygate/internal/service"
	"github.com/telhawk-systems/paygate/internal/signature"
)

// DefaultMaxBodyBytes caps an inbound webhook body.
const DefaultMaxBodyBytes int64 = 1 << 20

const (
	msgMissingSignature = "Missing stripe-signature"
	msgInvalidSignature = "Invalid signature"
	msgMalformedPayload = "Malformed payload"
	msgBodyTooLarge     = "Request body too large"
	msgMethodNotAllowed = "Method not allowed"
)

// Gateway processes one authenticated-or-not delivery.
type Gateway interface {
	Process(ctx context.Context, in models.InboundWebhook) (*service.Result, error)
}

type WebhookHandler struct {
	gateway      Gateway
	maxBodyBytes int64
	// secretsErr is set in degraded mode: every delivery fails with it
	// before the body is read.
	secretsErr error
	logger     *logging.Logger
	now        func() time.Time
}

type WebhookOption func(*WebhookHandler)

func WithMaxBodyBytes(n int64) WebhookOption {
	return func(h *WebhookHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithSecretsError puts the handler in degraded mode.
func WithSecretsError(err error) WebhookOption {
	return func(h *WebhookHandler) { h.secretsErr = err }
}

func WithHandlerLogger(l *logging.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewWebhookHandler(gateway Gateway, opts ...WebhookOption) *WebhookHandler {
	h := &WebhookHandler{
		gateway:      gateway,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logging.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type webhookResponse struct {
	OK        bool            `json:"ok"`
	Ingest    json.RawMessage `json:"ingest"`
	Duplicate bool            `json:"duplicate,omitempty"`
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httputil.WriteText(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	if h.secretsErr != nil {
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultMissingSecret).Inc()
		h.logger.ErrorContext(r.Context(), "webhook refused: secrets not configured", logging.Error(h.secretsErr))
		httputil.WriteText(w, http.StatusInternalServerError, h.secretsErr.Error())
		return
	}

	sig := r.Header.Get(signature.HeaderName)
	if sig == "" {
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultMissingSignature).Inc()
		metrics.SignatureFailures.WithLabelValues(string(signature.ReasonMissingHeader)).Inc()
		httputil.WriteText(w, http.StatusBadRequest, msgMissingSignature)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.WebhooksTotal.WithLabelValues(metrics.ResultError).Inc()
			httputil.WriteText(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultError).Inc()
		h.logger.WarnContext(r.Context(), "failed to read webhook body", logging.Error(err))
		httputil.WriteText(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	result, err := h.gateway.Process(r.Context(), models.InboundWebhook{
		Body:       body,
		Signature:  sig,
		ReceivedAt: h.now().UTC(),
		SourceIP:   ratelimit.ClientIP(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := webhookResponse{OK: true}
	if result.Outcome != nil {
		resp.Ingest = result.Outcome.Record
	}
	if result.Duplicate() {
		resp.Duplicate = true
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
	} else {
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultAccepted).Inc()
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeError maps a pipeline error to its status and a non-sensitive body.
func (h *WebhookHandler) writeError(w http.ResponseWriter, err error) {
	var (
		sigErr     *signature.Error
		malformed  *signature.MalformedPayloadError
		downstream *ingestclient.DownstreamError
		cfgErr     *config.ConfigError
	)

	switch {
	case errors.As(err, &sigErr):
		if sigErr.Reason == signature.ReasonMissingHeader {
			metrics.WebhooksTotal.WithLabelValues(metrics.ResultMissingSignature).Inc()
			httputil.WriteText(w, http.StatusBadRequest, msgMissingSignature)
			return
		}
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultInvalidSignature).Inc()
		httputil.WriteText(w, http.StatusBadRequest, msgInvalidSignature)
	case errors.As(err, &malformed):
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultMalformed).Inc()
		httputil.WriteText(w, http.StatusBadRequest, msgMalformedPayload)
	case errors.As(err, &cfgErr):
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultMissingSecret).Inc()
		httputil.WriteText(w, http.StatusInternalServerError, cfgErr.Error())
	case errors.Is(err, signature.ErrSecretNotConfigured):
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultMissingSecret).Inc()
		httputil.WriteText(w, http.StatusInternalServerError, (&config.ConfigError{Name: config.EnvWebhookSecret}).Error())
	case errors.As(err, &downstream):
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultIngestFailed).Inc()
		httputil.WriteText(w, http.StatusInternalServerError, downstream.Error())
	default:
		metrics.WebhooksTotal.WithLabelValues(metrics.ResultError).Inc()
		httputil.WriteText(w, http.StatusInternalServerError, err.Error())
	}
}
