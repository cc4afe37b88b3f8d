// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetSessionState(t *testing.T) {
	SetSessionState("authenticated")

	if got := testutil.ToFloat64(SessionState.WithLabelValues("authenticated")); got != 1 {
		t.Errorf("session_state{authenticated} = %v, want 1", got)
	}
	for _, other := range []string{"unauthenticated", "initializing", "refreshing", "error"} {
		if got := testutil.ToFloat64(SessionState.WithLabelValues(other)); got != 0 {
			t.Errorf("session_state{%s} = %v, want 0", other, got)
		}
	}

	// Switching the state flips the gauge one-hot.
	SetSessionState("unauthenticated")
	if got := testutil.ToFloat64(SessionState.WithLabelValues("authenticated")); got != 0 {
		t.Errorf("session_state{authenticated} after switch = %v, want 0", got)
	}
	if got := testutil.ToFloat64(SessionState.WithLabelValues("unauthenticated")); got != 1 {
		t.Errorf("session_state{unauthenticated} after switch = %v, want 1", got)
	}
}

func TestSetChannelState(t *testing.T) {
	SetChannelState("reconnecting")

	if got := testutil.ToFloat64(ChannelState.WithLabelValues("reconnecting")); got != 1 {
		t.Errorf("channel_state{reconnecting} = %v, want 1", got)
	}
	for _, other := range []string{"closed", "connecting", "open"} {
		if got := testutil.ToFloat64(ChannelState.WithLabelValues(other)); got != 0 {
			t.Errorf("channel_state{%s} = %v, want 0", other, got)
		}
	}
}

func TestRecordSessionOperation(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		outcome   string
		duration  time.Duration
	}{
		{"successful init", "init", "success", 120 * time.Millisecond},
		{"coalesced init", "init", "unauthenticated", 5 * time.Millisecond},
		{"failed login", "login", "invalid_credentials", 80 * time.Millisecond},
		{"refresh network failure", "refresh", "network", 30 * time.Second},
		{"logout", "logout", "success", 15 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SessionOperations.WithLabelValues(tt.operation, tt.outcome))
			RecordSessionOperation(tt.operation, tt.outcome, tt.duration)
			after := testutil.ToFloat64(SessionOperations.WithLabelValues(tt.operation, tt.outcome))
			if after != before+1 {
				t.Errorf("session_operations_total{%s,%s} = %v, want %v",
					tt.operation, tt.outcome, after, before+1)
			}
		})
	}
}

func TestRecordSessionTransition(t *testing.T) {
	before := testutil.ToFloat64(SessionTransitions.WithLabelValues("initializing", "authenticated"))
	RecordSessionTransition("initializing", "authenticated")
	after := testutil.ToFloat64(SessionTransitions.WithLabelValues("initializing", "authenticated"))
	if after != before+1 {
		t.Errorf("session_state_transitions_total = %v, want %v", after, before+1)
	}
}

func TestSetTokenExpiry(t *testing.T) {
	expiry := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	SetTokenExpiry(expiry)
	if got := testutil.ToFloat64(SessionTokenExpiry); got != float64(expiry.Unix()) {
		t.Errorf("session_token_expiry_timestamp = %v, want %v", got, expiry.Unix())
	}

	// The zero time means unauthenticated.
	SetTokenExpiry(time.Time{})
	if got := testutil.ToFloat64(SessionTokenExpiry); got != 0 {
		t.Errorf("session_token_expiry_timestamp after clear = %v, want 0", got)
	}
}

func TestCacheCounters(t *testing.T) {
	RecordCacheHit("catalog")
	RecordCacheMiss("catalog")
	SetCacheSize("catalog", 42)

	if got := testutil.ToFloat64(CacheSize.WithLabelValues("catalog")); got != 42 {
		t.Errorf("cache_entries{catalog} = %v, want 42", got)
	}

	before := testutil.ToFloat64(CacheEvictions.WithLabelValues("catalog"))
	AddCacheEvictions("catalog", 3)
	after := testutil.ToFloat64(CacheEvictions.WithLabelValues("catalog"))
	if after != before+3 {
		t.Errorf("cache_evictions_total{catalog} = %v, want %v", after, before+3)
	}

	// Zero and negative adds are no-ops, not panics.
	AddCacheEvictions("catalog", 0)
	AddCacheEvictions("catalog", -1)
	if got := testutil.ToFloat64(CacheEvictions.WithLabelValues("catalog")); got != after {
		t.Errorf("cache_evictions_total{catalog} after no-op adds = %v, want %v", got, after)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	tests := []struct {
		service   string
		operation string
		outcome   string
		duration  time.Duration
	}{
		{"auth", "login", "success", 150 * time.Millisecond},
		{"auth", "verify", "token_expired", 40 * time.Millisecond},
		{"catalog", "trending", "success", 800 * time.Millisecond},
		{"catalog", "search", "network", 30 * time.Second},
	}

	for _, tt := range tests {
		before := testutil.ToFloat64(UpstreamRequests.WithLabelValues(tt.service, tt.operation, tt.outcome))
		RecordUpstreamRequest(tt.service, tt.operation, tt.outcome, tt.duration)
		after := testutil.ToFloat64(UpstreamRequests.WithLabelValues(tt.service, tt.operation, tt.outcome))
		if after != before+1 {
			t.Errorf("upstream_requests_total{%s,%s,%s} = %v, want %v",
				tt.service, tt.operation, tt.outcome, after, before+1)
		}
	}
}

func TestChannelCounters(t *testing.T) {
	inBefore := testutil.ToFloat64(ChannelMessages.WithLabelValues("in"))
	RecordChannelMessage("in")
	RecordChannelMessage("out")
	if got := testutil.ToFloat64(ChannelMessages.WithLabelValues("in")); got != inBefore+1 {
		t.Errorf("channel_messages_total{in} = %v, want %v", got, inBefore+1)
	}

	parseBefore := testutil.ToFloat64(ChannelParseErrors)
	RecordChannelParseError()
	if got := testutil.ToFloat64(ChannelParseErrors); got != parseBefore+1 {
		t.Errorf("channel_parse_errors_total = %v, want %v", got, parseBefore+1)
	}

	panicBefore := testutil.ToFloat64(ChannelHandlerPanics)
	RecordChannelHandlerPanic()
	if got := testutil.ToFloat64(ChannelHandlerPanics); got != panicBefore+1 {
		t.Errorf("channel_handler_panics_total = %v, want %v", got, panicBefore+1)
	}

	reconnectBefore := testutil.ToFloat64(ChannelReconnects)
	RecordChannelReconnect()
	if got := testutil.ToFloat64(ChannelReconnects); got != reconnectBefore+1 {
		t.Errorf("channel_reconnect_attempts_total = %v, want %v", got, reconnectBefore+1)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	SetCircuitBreakerState("catalog", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("catalog")); got != 2 {
		t.Errorf("circuit_breaker_state{catalog} = %v, want 2", got)
	}

	RecordCircuitBreakerRequest("catalog", "rejected")
	RecordCircuitBreakerTransition("catalog", "closed", "open")
}

func TestHubMetrics(t *testing.T) {
	SetHubClients(3)
	if got := testutil.ToFloat64(HubClients); got != 3 {
		t.Errorf("hub_clients = %v, want 3", got)
	}

	before := testutil.ToFloat64(HubBroadcasts.WithLabelValues("download-progress"))
	RecordHubBroadcast("download-progress")
	after := testutil.ToFloat64(HubBroadcasts.WithLabelValues("download-progress"))
	if after != before+1 {
		t.Errorf("hub_broadcasts_total{download-progress} = %v, want %v", after, before+1)
	}

	RecordHubMessageDropped()
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+2 {
		t.Errorf("api_active_requests = %v, want %v", got, base+2)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Errorf("api_active_requests after decrements = %v, want %v", got, base)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/session", "200", 3*time.Millisecond)
	RecordAPIRequest("POST", "/api/v1/session/login", "401", 90*time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/catalog/trending", "200", 450*time.Millisecond)
}

func TestRecordInitCoalesced(t *testing.T) {
	before := testutil.ToFloat64(SessionInitCoalesced)
	RecordInitCoalesced()
	if got := testutil.ToFloat64(SessionInitCoalesced); got != before+1 {
		t.Errorf("session_init_coalesced_total = %v, want %v", got, before+1)
	}
}

// TestMetricsLint validates all registered metrics against Prometheus
// naming and help-text conventions.
func TestMetricsLint(t *testing.T) {
	SetAppInfo("test", "go1.24")

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, p := range problems {
		t.Errorf("metric %s: %s", p.Metric, p.Text)
	}
}

func TestConcurrentRecording(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				RecordCacheHit("concurrent")
				RecordChannelMessage("in")
				RecordUpstreamRequest("catalog", "details", "success", time.Millisecond)
				SetSessionState("authenticated")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
