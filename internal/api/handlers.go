// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/catalog"
	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/realtime"
	"github.com/tomtom215/watchdeck/internal/session"
	ws "github.com/tomtom215/watchdeck/internal/websocket"
)

// SessionController is the slice of the session manager the API layer
// depends on. Narrowed to an interface so handler tests can run against a
// lightweight fake instead of a full manager with backend and store.
type SessionController interface {
	Current() session.Snapshot
	Initialized() bool
	Login(ctx context.Context, creds *auth.Credentials) session.LoginResult
	Logout(ctx context.Context)
	RefreshToken(ctx context.Context) bool
	ChannelState() realtime.State
}

// Handler holds the dependencies shared by all HTTP endpoints.
type Handler struct {
	sessions  SessionController
	catalog   catalog.Fetcher
	hub       *ws.Hub
	cfg       *config.Config
	startTime time.Time
	version   string
}

// NewHandler creates the API handler. catalog and hub may be nil, in which
// case the corresponding endpoints respond 503.
func NewHandler(sessions SessionController, cat catalog.Fetcher, hub *ws.Hub, cfg *config.Config, version string) *Handler {
	return &Handler{
		sessions:  sessions,
		catalog:   cat,
		hub:       hub,
		cfg:       cfg,
		startTime: time.Now(),
		version:   version,
	}
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and
// a handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin.
	// Only non-browser clients (curl, scripts) omit it, and allowing empty
	// Origin bypasses CORS entirely.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.cfg == nil {
		return true
	}

	for _, allowedOrigin := range h.cfg.Server.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Origin not in allowed list - sanitize origin to prevent log injection
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and attaches the client to the broadcast
// hub. Dashboards receive download-progress events and session state
// changes over this connection.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		WriteServiceUnavailable(w, r, "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// sanitizeLogValue removes control characters from strings to prevent log
// injection attacks. This includes newlines, carriage returns, tabs, and
// other control characters that could allow attackers to forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		// Replace control characters (0x00-0x1F and 0x7F) with a safe representation
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
