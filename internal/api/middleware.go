// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/planpress/planpress/internal/config"
	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/metrics"
)

// Middleware bundles the security middleware built from configuration.
type Middleware struct {
	authToken         string
	rateLimitReqs     int
	rateLimitWindow   time.Duration
	rateLimitDisabled bool
	cors              func(http.Handler) http.Handler
}

// NewMiddleware builds the middleware set from the security and ingest
// configuration sections.
func NewMiddleware(cfg *config.Config) *Middleware {
	window := cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		authToken:         cfg.Ingest.AuthToken,
		rateLimitReqs:     cfg.Security.RateLimitReqs,
		rateLimitWindow:   window,
		rateLimitDisabled: cfg.Security.RateLimitDisabled,
		cors:              corsHandler,
	}
}

// CORS returns the configured go-chi/cors handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns IP-keyed rate limiting using go-chi/httprate, or a
// pass-through when rate limiting is disabled.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.rateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		m.rateLimitReqs,
		m.rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RateLimitHealth is permissive rate limiting for health endpoints so
// monitoring probes never compete with the API budget.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	if m.rateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(1000, time.Minute)
}

// Authenticate requires the shared ingest token in the Authorization
// header, either bare or as a Bearer credential. The comparison is
// constant time.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("Authorization")
		presented = strings.TrimPrefix(presented, "Bearer ")

		if presented == "" {
			WriteUnauthorized(w, r, "missing authorization token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(m.authToken)) != 1 {
			logging.Warn().
				Str("remote_addr", r.RemoteAddr).
				Str("path", r.URL.Path).
				Msg("Rejected request with invalid token")
			WriteUnauthorized(w, r, "invalid authorization token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID assigns each request an ID, exposes it in the X-Request-ID
// response header, and threads it through the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Instrument records Prometheus request metrics. The endpoint label is the
// route pattern, not the raw path, to keep cardinality bounded.
func Instrument(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.RecordHTTPRequest(r.Method, endpoint, ww.status, time.Since(start))
		})
	}
}

// SecurityHeaders sets the standard hardening headers on API responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
