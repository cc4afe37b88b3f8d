// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchdeck/internal/catalog"
	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/session"
)

func newTestRouter(cfg *config.Config, sess SessionController, cat catalog.Fetcher) http.Handler {
	handler := NewHandler(sess, cat, nil, cfg, "test")
	return NewRouter(handler, cfg).Setup()
}

func TestRouterHealthEndpoints(t *testing.T) {
	sess := &fakeSession{
		initialized: true,
		snap:        session.Snapshot{State: session.StateAuthenticated},
	}
	router := newTestRouter(newTestConfig(), sess, nil)

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, rec.Code)
		}
	}
}

func TestRouterSessionEndpoint(t *testing.T) {
	sess := &fakeSession{snap: session.Snapshot{State: session.StateAuthenticated}}
	router := newTestRouter(newTestConfig(), sess, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("Expected request ID in response meta")
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(newTestConfig(), &fakeSession{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Expected %s error envelope, got %+v", ErrCodeNotFound, resp.Error)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(newTestConfig(), &fakeSession{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("Expected Prometheus exposition output")
	}
}

func TestRouterCatalogRouteParams(t *testing.T) {
	fetcher := &fakeCatalog{payload: json.RawMessage(`{"id":438631}`)}
	router := newTestRouter(newTestConfig(), &fakeSession{}, fetcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/details/tmdb/438631?type=movie", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if fetcher.lastSource != "tmdb" || fetcher.lastID != "438631" {
		t.Errorf("Expected route params tmdb/438631, got %s/%s", fetcher.lastSource, fetcher.lastID)
	}
}

func TestRouterLoginRateLimit(t *testing.T) {
	// Rate limiting stays enabled so the strict login limiter kicks in.
	cfg := config.Defaults()
	router := newTestRouter(cfg, &fakeSession{}, nil)

	body := `{"username":"alice","password":"hunter2"}`

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("Attempt %d: rate limited before the configured threshold", i+1)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 on sixth login attempt, got %d", rec.Code)
	}
}

func TestRouterAuthGate(t *testing.T) {
	cfg := newTestConfig()
	cfg.Server.APIToken = "router-secret"
	router := newTestRouter(cfg, &fakeSession{}, nil)

	t.Run("session rejected without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	t.Run("session allowed with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		req.Header.Set("Authorization", "Bearer router-secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})

	t.Run("metrics stays open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(newTestConfig(), &fakeSession{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// go-chi/cors answers preflight with 200 or 204 depending on version.
	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 200 or 204 on preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard allow origin, got %q", got)
	}
}

func TestRouterWebSocketRouteWired(t *testing.T) {
	router := newTestRouter(newTestConfig(), &fakeSession{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// No hub is attached, so the route answers 503 before attempting the
	// upgrade. Anything other than 404 proves the route is registered.
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without a hub, got %d", rec.Code)
	}
}
