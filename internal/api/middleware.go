// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// Middleware provides Chi-compatible middleware factories built from the
// server configuration. Rate limiting and CORS use the production-hardened
// implementations from the Chi ecosystem.
type Middleware struct {
	cfg  *config.ServerConfig
	cors func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory for the given server config.
func NewMiddleware(cfg *config.ServerConfig) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		cfg:  cfg,
		cors: corsHandler,
	}
}

// CORS returns the CORS middleware using go-chi/cors. Must be global so
// OPTIONS preflight requests are handled before routing.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	// Requests is the number of requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Endpoint-specific rate limit configurations.
var (
	// RateLimitLogin is very strict for login attempts (brute force prevention)
	RateLimitLogin = RateLimitConfig{Requests: 5, Window: 5 * time.Minute}

	// RateLimitHealth is permissive so monitoring tools can poll frequently
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitWebSocket limits upgrade attempts, not message rates
	RateLimitWebSocket = RateLimitConfig{Requests: 30, Window: time.Minute}
)

// RateLimit returns the default IP-based rate limiter from the server
// config (100 requests/minute unless overridden).
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitConfig{
		Requests: m.cfg.RateLimitReqs,
		Window:   m.cfg.RateLimitWindow,
	})
}

// RateLimitCustom returns an IP-based rate limiter with the given
// parameters, or a no-op middleware when rate limiting is disabled.
func (m *Middleware) RateLimitCustom(rc RateLimitConfig) func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		rc.Requests,
		rc.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RateLimitLogin returns the strict limiter for the login endpoint.
func (m *Middleware) RateLimitLogin() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitLogin)
}

// RateLimitHealth returns the permissive limiter for health endpoints.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitHealth)
}

// RateLimitWebSocket returns the limiter for WebSocket upgrade attempts.
func (m *Middleware) RateLimitWebSocket() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitWebSocket)
}

// Authenticate gates requests behind the locally configured credential.
//
// Two schemes are supported, checked in order:
//   - api_token: "Authorization: Bearer <token>" compared in constant time.
//     A "token" query parameter is accepted as a fallback because browsers
//     cannot set headers on WebSocket upgrade requests.
//   - password_hash: HTTP Basic auth with the password checked against the
//     stored bcrypt hash (username is not evaluated).
//
// When neither credential is configured the daemon is assumed to sit on a
// trusted loopback/LAN interface and all requests pass.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	token := m.cfg.APIToken
	passwordHash := m.cfg.PasswordHash

	if token == "" && passwordHash == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && bearerTokenMatches(r, token) {
			next.ServeHTTP(w, r)
			return
		}

		if passwordHash != "" {
			if _, password, ok := r.BasicAuth(); ok {
				if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="watchdeck"`)
		}

		logging.Ctx(r.Context()).Warn().
			Str("remote_addr", r.RemoteAddr).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Msg("Rejected unauthenticated request")

		WriteUnauthorized(w, r, "Authentication required")
	})
}

// bearerTokenMatches checks the Authorization header and the token query
// parameter against the configured API token in constant time.
func bearerTokenMatches(r *http.Request, token string) bool {
	provided := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		provided = strings.TrimPrefix(h, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		provided = q
	}

	if provided == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}

// RequestIDWithLogging returns a middleware that adds a request ID to the
// context and integrates with the logging package, so every log line
// emitted while serving a request carries its request_id.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// First apply chi's RequestID middleware
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get the request ID that chi will set (from header or generated)
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				// chi will generate one, but we need it for logging context
				// so we generate our own that chi will then use
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}

			ctx := logging.ContextWithRequestID(r.Context(), requestID)

			// Pass through to chi's RequestID middleware with enriched context
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APISecurityHeaders returns a middleware that adds security headers to API
// responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff (prevents MIME type sniffing)
//   - X-Frame-Options: DENY (prevents clickjacking)
//   - Referrer-Policy: strict-origin-when-cross-origin (limits referrer information)
//
// HSTS is added conditionally when the request arrives over HTTPS or behind
// a TLS-terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
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
}

// PrometheusMetrics returns a middleware recording request counts,
// durations, and the active-request gauge. The chi route pattern is used as
// the endpoint label to keep cardinality bounded on parameterized routes.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()

			// Wrap ResponseWriter to capture status code
			wrapper := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapper, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}

			metrics.RecordAPIRequest(
				r.Method,
				endpoint,
				strconv.Itoa(wrapper.statusCode),
				time.Since(start),
			)
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes hijacking through to the underlying writer so the WebSocket
// upgrade keeps working behind this middleware.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
