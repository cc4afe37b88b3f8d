// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the session core and its surfaces:
// - Session state machine transitions and operation outcomes
// - Realtime channel health and traffic
// - TTL cache efficiency
// - Upstream backend calls (auth + catalog)
// - Circuit breaker state
// - Local dashboard hub and API

var (
	// Session Metrics
	SessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"}, // "unauthenticated", "initializing", "authenticated", "refreshing", "error"
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_state_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from", "to"},
	)

	SessionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_operations_total",
			Help: "Total number of session operations by outcome",
		},
		[]string{"operation", "outcome"}, // operation: "init", "login", "logout", "refresh"
	)

	SessionOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_operation_duration_seconds",
			Help:    "Duration of session operations in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	SessionInitCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_init_coalesced_total",
			Help: "Total number of Init callers that attached to an in-flight initialization",
		},
	)

	SessionTokenExpiry = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_token_expiry_timestamp",
			Help: "Unix timestamp at which the current access token expires (0 when unauthenticated)",
		},
	)

	// Realtime Channel Metrics
	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_state",
			Help: "Current realtime channel state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"}, // "closed", "connecting", "open", "reconnecting"
	)

	ChannelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_reconnect_attempts_total",
			Help: "Total number of channel reconnect attempts",
		},
	)

	ChannelMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_messages_total",
			Help: "Total number of realtime channel messages",
		},
		[]string{"direction"}, // "in", "out"
	)

	ChannelParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_parse_errors_total",
			Help: "Total number of inbound channel frames that failed to decode",
		},
	)

	ChannelHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_handler_panics_total",
			Help: "Total number of recovered panics in channel subscribers",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses (absent or expired)",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry, capacity, explicit delete)",
		},
		[]string{"cache"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	// Upstream Backend Metrics (auth + catalog calls)
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests to the backend by outcome",
		},
		[]string{"service", "operation", "outcome"}, // service: "auth", "catalog"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of backend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	UpstreamRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_rate_limit_waits_total",
			Help: "Total number of requests delayed by the client-side rate limiter",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Local Hub Metrics
	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_clients",
			Help: "Current number of connected dashboard clients",
		},
	)

	HubBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total number of events broadcast to dashboard clients",
		},
		[]string{"event_type"},
	)

	HubMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_messages_dropped_total",
			Help: "Total number of messages dropped on slow dashboard clients",
		},
	)

	// Local API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active local API requests",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// sessionStates enumerates the session_state gauge's label values.
var sessionStates = []string{"unauthenticated", "initializing", "authenticated", "refreshing", "error"}

// channelStates enumerates the channel_state gauge's label values.
var channelStates = []string{"closed", "connecting", "open", "reconnecting"}

// SetSessionState flips the session state gauge: the active state reads 1,
// all others 0, so dashboards can plot the state as a step function.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}

// RecordSessionTransition records one session state machine transition.
func RecordSessionTransition(from, to string) {
	SessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordSessionOperation records the outcome and duration of a session
// operation (init, login, logout, refresh).
func RecordSessionOperation(operation, outcome string, duration time.Duration) {
	SessionOperations.WithLabelValues(operation, outcome).Inc()
	SessionOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordInitCoalesced records an Init caller that shared an in-flight
// initialization instead of starting its own.
func RecordInitCoalesced() {
	SessionInitCoalesced.Inc()
}

// SetTokenExpiry publishes the access token's expiry instant. Pass the zero
// time when unauthenticated.
func SetTokenExpiry(expiresAt time.Time) {
	if expiresAt.IsZero() {
		SessionTokenExpiry.Set(0)
		return
	}
	SessionTokenExpiry.Set(float64(expiresAt.Unix()))
}

// SetChannelState flips the channel state gauge, one-hot like the session
// state gauge.
func SetChannelState(state string) {
	for _, s := range channelStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ChannelState.WithLabelValues(s).Set(v)
	}
}

// RecordChannelReconnect records one reconnect attempt.
func RecordChannelReconnect() {
	ChannelReconnects.Inc()
}

// RecordChannelMessage records one message in the given direction ("in", "out").
func RecordChannelMessage(direction string) {
	ChannelMessages.WithLabelValues(direction).Inc()
}

// RecordChannelParseError records an inbound frame that failed to decode.
func RecordChannelParseError() {
	ChannelParseErrors.Inc()
}

// RecordChannelHandlerPanic records a recovered subscriber panic.
func RecordChannelHandlerPanic() {
	ChannelHandlerPanics.Inc()
}

// RecordCacheHit records a cache hit for the named cache.
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the named cache.
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// AddCacheEvictions adds n evictions for the named cache. Zero is a no-op so
// callers can pass sweep results unconditionally.
func AddCacheEvictions(cache string, n int64) {
	if n <= 0 {
		return
	}
	CacheEvictions.WithLabelValues(cache).Add(float64(n))
}

// SetCacheSize publishes the current entry count of the named cache.
func SetCacheSize(cache string, n int64) {
	CacheSize.WithLabelValues(cache).Set(float64(n))
}

// RecordUpstreamRequest records one backend request and its duration.
func RecordUpstreamRequest(service, operation, outcome string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(service, operation, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRateLimitWait records a request delayed by the client-side limiter.
func RecordRateLimitWait() {
	UpstreamRateLimitWaits.Inc()
}

// SetCircuitBreakerState publishes the breaker's state
// (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerRequest records a request's result through the breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// SetHubClients publishes the current dashboard client count.
func SetHubClients(n int) {
	HubClients.Set(float64(n))
}

// RecordHubBroadcast records one event fanned out to dashboard clients.
func RecordHubBroadcast(eventType string) {
	HubBroadcasts.WithLabelValues(eventType).Inc()
}

// RecordHubMessageDropped records a message dropped on a slow client.
func RecordHubMessageDropped() {
	HubMessagesDropped.Inc()
}

// RecordAPIRequest records a local API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active local API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes build information once at startup.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
