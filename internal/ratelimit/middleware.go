package ratelimit

import (
	"net"
	"net/http"

	"github.com/telhawk-systems/paygate/internal/httputil"
	"github.com/telhawk-systems/paygate/internal/logging"
)

// Middleware rejects requests over budget with 429, keyed by client IP.
// Limiter errors fail open so a Redis outage never drops webhooks.
func Middleware(limiter RateLimiter, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded", logging.IP(ip), logging.Path(r.URL.Path))
				w.Header().Set("Retry-After", "1")
				httputil.WriteText(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
