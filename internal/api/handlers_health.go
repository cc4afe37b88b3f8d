// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":   true,
		"version": h.version,
		"uptime":  time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
//
// Ready means the session manager finished its initial reconciliation; the
// resulting state may still be Unauthenticated (operator has not logged in
// yet), which is a valid serving condition for the local API. The snapshot
// and channel state ride along so dashboards and probes can display them.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ready := h.sessions.Initialized()
	snap := h.sessions.Current()

	data := map[string]interface{}{
		"ready":         ready,
		"session_state": snap.State.String(),
		"channel_state": h.sessions.ChannelState().String(),
		"uptime":        time.Since(h.startTime).Seconds(),
	}

	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Session layer is still initializing", data)
		return
	}

	rw.Success(data)
}
