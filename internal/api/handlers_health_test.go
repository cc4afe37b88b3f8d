// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/watchdeck/internal/realtime"
	"github.com/tomtom215/watchdeck/internal/session"
)

func TestHealthLive(t *testing.T) {
	handler := newTestHandler(&fakeSession{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	rec := httptest.NewRecorder()

	handler.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %T", resp.Data)
	}
	if data["alive"] != true {
		t.Errorf("Expected alive=true, got %v", data["alive"])
	}
	if data["version"] != "test" {
		t.Errorf("Expected version test, got %v", data["version"])
	}
	if _, ok := data["uptime"]; !ok {
		t.Error("Expected uptime in response")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name        string
		initialized bool
		state       session.State
		channel     realtime.State
		wantStatus  int
	}{
		{
			name:        "ready when initialized and authenticated",
			initialized: true,
			state:       session.StateAuthenticated,
			channel:     realtime.StateOpen,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "ready when initialized but logged out",
			initialized: true,
			state:       session.StateUnauthenticated,
			channel:     realtime.StateClosed,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "not ready while initializing",
			initialized: false,
			state:       session.StateInitializing,
			channel:     realtime.StateClosed,
			wantStatus:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{
				initialized: tt.initialized,
				snap:        session.Snapshot{State: tt.state},
				channel:     tt.channel,
			}
			handler := newTestHandler(sess, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
			rec := httptest.NewRecorder()

			handler.HealthReady(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			resp := decodeEnvelope(t, rec.Body)

			var data map[string]interface{}
			if tt.wantStatus == http.StatusOK {
				d, ok := resp.Data.(map[string]interface{})
				if !ok {
					t.Fatalf("Expected data object, got %T", resp.Data)
				}
				data = d
			} else {
				if resp.Error == nil {
					t.Fatal("Expected error in envelope")
				}
				d, ok := resp.Error.Details.(map[string]interface{})
				if !ok {
					t.Fatalf("Expected details object, got %T", resp.Error.Details)
				}
				data = d
			}

			if data["session_state"] != tt.state.String() {
				t.Errorf("Expected session_state %s, got %v", tt.state, data["session_state"])
			}
			if data["channel_state"] != tt.channel.String() {
				t.Errorf("Expected channel_state %s, got %v", tt.channel, data["channel_state"])
			}
			if data["ready"] != (tt.wantStatus == http.StatusOK) {
				t.Errorf("Expected ready=%v, got %v", tt.wantStatus == http.StatusOK, data["ready"])
			}
		})
	}
}
