// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/validation"
)

// Session returns the current session snapshot: the lifecycle state, the
// authenticated user when present, and the initialization error when the
// state machine broke.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.sessions.Current())
}

// Login authenticates against the media backend and, on success, persists
// the token pair and opens the realtime channel. A rejected login is a 401
// carrying the stable error message from the session layer; the state
// machine and the token store stay untouched.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	creds, ok := h.parseLoginRequest(rw, r)
	if !ok {
		return
	}

	result := h.sessions.Login(r.Context(), creds)
	if !result.Success {
		logging.Ctx(r.Context()).Warn().
			Str("username", sanitizeLogValue(creds.Username)).
			Msg("Login rejected")
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, result.Error)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("username", sanitizeLogValue(creds.Username)).
		Msg("Login succeeded")
	rw.Success(result)
}

// parseLoginRequest decodes and validates the login request body.
func (h *Handler) parseLoginRequest(rw *ResponseWriter, r *http.Request) (*auth.Credentials, bool) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		rw.BadRequest("Invalid request body")
		return nil, false
	}

	if verr := validation.ValidateStruct(&creds); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return nil, false
	}

	return &creds, true
}

// Logout tears the session down: realtime channel closed first, best-effort
// backend logout, stored tokens cleared unconditionally. Always succeeds
// from the client's point of view.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	WriteSuccess(w, r, h.sessions.Current())
}

// Refresh forces one token rotation. A failed rotation has already forced a
// full logout by the time this handler replies, so the 401 response carries
// the post-logout snapshot.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.sessions.RefreshToken(r.Context()) {
		rw.ErrorWithDetails(http.StatusUnauthorized, ErrCodeUnauthorized,
			"Token refresh failed", h.sessions.Current())
		return
	}

	rw.Success(h.sessions.Current())
}
