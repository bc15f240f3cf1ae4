package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"itsec-data/internal/store"
)

// Middleware wraps the whole router: API-key check first, then a
// fixed-window rate limit keyed by client IP + path.
type Middleware struct {
	apiKey     string
	rateLimit  int
	rateWindow time.Duration
	kv         store.KV
	logger     *zap.Logger
}

func NewMiddleware(apiKey string, rateLimit int, rateWindow time.Duration, kv store.KV, logger *zap.Logger) *Middleware {
	return &Middleware{
		apiKey:     apiKey,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		kv:         kv,
		logger:     logger,
	}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if m.apiKey != "" {
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != m.apiKey {
				writeJSON(w, http.StatusUnauthorized, Fail("invalid or missing API key"))
				return
			}
		}

		if m.rateLimit > 0 && m.kv != nil {
			rlKey := fmt.Sprintf("ratelimit:%s:%s", clientIP(r), r.URL.Path)
			n, err := m.kv.Incr(r.Context(), rlKey, m.rateWindow)
			if err != nil {
				// Redis being down should not block the API.
				m.logger.Warn("rate limit check failed", zap.Error(err))
			} else if n > int64(m.rateLimit) {
				writeJSON(w, http.StatusTooManyRequests, Fail("rate limit exceeded"))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
