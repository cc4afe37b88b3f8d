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

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/session"
)

func TestSessionSnapshot(t *testing.T) {
	sess := &fakeSession{
		snap: session.Snapshot{
			State: session.StateAuthenticated,
			User:  &auth.UserProfile{ID: "u-1", Username: "alice"},
		},
	}
	handler := newTestHandler(sess, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()

	handler.Session(rec, req)

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

	// State must serialize by name, not as an integer.
	if data["state"] != "authenticated" {
		t.Errorf("Expected state authenticated, got %v", data["state"])
	}

	user, ok := data["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected user object, got %T", data["user"])
	}
	if user["username"] != "alice" {
		t.Errorf("Expected username alice, got %v", user["username"])
	}
}

func TestSessionSnapshotUnauthenticated(t *testing.T) {
	handler := newTestHandler(&fakeSession{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()

	handler.Session(rec, req)

	resp := decodeEnvelope(t, rec.Body)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %T", resp.Data)
	}

	if data["state"] != "unauthenticated" {
		t.Errorf("Expected state unauthenticated, got %v", data["state"])
	}
	if _, present := data["user"]; present {
		t.Error("Expected user to be omitted when unauthenticated")
	}
}

func TestLoginSuccess(t *testing.T) {
	sess := &fakeSession{
		loginResult: session.LoginResult{
			Success: true,
			User:    &auth.UserProfile{ID: "u-1", Username: "alice"},
		},
	}
	handler := newTestHandler(sess, nil, nil)

	body := strings.NewReader(`{"username":"alice","password":"hunter2","rememberMe":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %T", resp.Data)
	}
	if data["success"] != true {
		t.Errorf("Expected login result success=true, got %v", data["success"])
	}

	if sess.lastCreds == nil {
		t.Fatal("Expected credentials to reach the session manager")
	}
	if sess.lastCreds.Username != "alice" || sess.lastCreds.Password != "hunter2" {
		t.Errorf("Credentials not passed through: %+v", sess.lastCreds)
	}
	if !sess.lastCreds.RememberMe {
		t.Error("Expected rememberMe to be passed through")
	}
}

func TestLoginRejected(t *testing.T) {
	sess := &fakeSession{
		loginResult: session.LoginResult{Success: false, Error: "Invalid credentials"},
	}
	handler := newTestHandler(sess, nil, nil)

	body := strings.NewReader(`{"username":"alice","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error == nil {
		t.Fatal("Expected error in envelope")
	}
	if resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("Expected code %s, got %s", ErrCodeUnauthorized, resp.Error.Code)
	}
	if resp.Error.Message != "Invalid credentials" {
		t.Errorf("Expected stable error message, got %q", resp.Error.Message)
	}
}

func TestLoginMalformedBody(t *testing.T) {
	sess := &fakeSession{}
	handler := newTestHandler(sess, nil, nil)

	body := strings.NewReader(`{"username": not-json`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if sess.loginCalls != 0 {
		t.Error("Malformed body must not reach the session manager")
	}
}

func TestLoginValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing username", `{"password":"hunter2"}`},
		{"missing password", `{"username":"alice"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{}
			handler := newTestHandler(sess, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", rec.Code)
			}

			resp := decodeEnvelope(t, rec.Body)
			if resp.Error == nil {
				t.Fatal("Expected validation error in envelope")
			}
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("Expected code VALIDATION_ERROR, got %s", resp.Error.Code)
			}
			if sess.loginCalls != 0 {
				t.Error("Invalid request must not reach the session manager")
			}
		})
	}
}

func TestLogout(t *testing.T) {
	sess := &fakeSession{
		snap: session.Snapshot{
			State: session.StateAuthenticated,
			User:  &auth.UserProfile{ID: "u-1", Username: "alice"},
		},
	}
	handler := newTestHandler(sess, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if sess.logoutCalls != 1 {
		t.Errorf("Expected 1 logout call, got %d", sess.logoutCalls)
	}

	resp := decodeEnvelope(t, rec.Body)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %T", resp.Data)
	}
	if data["state"] != "unauthenticated" {
		t.Errorf("Expected post-logout state unauthenticated, got %v", data["state"])
	}
}

func TestRefreshSuccess(t *testing.T) {
	sess := &fakeSession{
		refreshOK: true,
		snap: session.Snapshot{
			State: session.StateAuthenticated,
			User:  &auth.UserProfile{ID: "u-1", Username: "alice"},
		},
	}
	handler := newTestHandler(sess, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/refresh", nil)
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if !resp.Success {
		t.Error("Expected success=true")
	}
}

func TestRefreshFailure(t *testing.T) {
	// A failed refresh has already forced a logout inside the session
	// layer, so the handler reports 401 with the post-logout snapshot.
	sess := &fakeSession{refreshOK: false}
	handler := newTestHandler(sess, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/refresh", nil)
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec.Body)
	if resp.Error == nil {
		t.Fatal("Expected error in envelope")
	}
	details, ok := resp.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected snapshot details, got %T", resp.Error.Details)
	}
	if details["state"] != "unauthenticated" {
		t.Errorf("Expected post-logout state in details, got %v", details["state"])
	}
}
