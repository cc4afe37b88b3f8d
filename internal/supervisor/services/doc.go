// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package services provides suture.Service wrappers for Watchdeck components.

This package adapts the daemon's components to the suture v4 supervision
model, translating their native lifecycle patterns (ListenAndServe,
RunWithContext, blocking sweep loops) into suture's context-aware Serve
pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation into the Serve pattern
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps the dashboard fan-out hub's RunWithContext
  - Closes every connected client on shutdown

Session Runner (SessionService):
  - Owns the session lifecycle: restore, optional headless login,
    periodic token rotation and channel re-arming
  - A failed restore returns an error so the supervisor retries it
  - Returns only on context cancellation otherwise, so the realtime
    channel's own fixed-delay reconnect policy is never fought

Cache Janitor (CacheJanitorService):
  - Wraps the catalog cache's RunJanitor sweep loop
  - Cadence comes from CACHE_JANITOR_INTERVAL

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/watchdeck/internal/supervisor"
	    "github.com/tomtom215/watchdeck/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub, mgr *session.Manager) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    tree.AddSessionService(services.NewSessionService(mgr, cfg.Credentials, cfg.Channel.ReconnectDelay))
	    tree.AddSessionService(services.NewCacheJanitorService(metadataCache, cfg.Cache.JanitorInterval))
	    tree.AddMessagingService(services.NewWebSocketHubService(hub))
	    tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	    tree.Serve(ctx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Testing

Every wrapper takes a small interface (HTTPServer, ContextHub,
SessionManager, JanitorCache) satisfied by the real component, so tests
substitute hand-written fakes and drive Serve directly.

# Thread Safety

Service wrappers hold no mutable state of their own; concurrency rules are
those of the wrapped component. Calling Serve concurrently on one wrapper
is not supported.

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: Hub implementation
  - internal/session: Manager implementation
*/
package services
