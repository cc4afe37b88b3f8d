// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package api provides the local HTTP surface of the Watchdeck daemon.

The daemon runs next to the dashboard on the same host or LAN; this package
exposes the session lifecycle, the cached catalog gateway, and the realtime
hub to dashboard browsers over a small REST + WebSocket API.

Key Components:

  - Router: Chi route configuration and middleware stack
  - Handler: request handlers delegating to the session manager and catalog service
  - Response formatting: standardized JSON envelope with request metadata
  - Local auth: optional bearer token or bcrypt basic auth for exposed deployments
  - Rate limiting: per-group httprate limits (strict on login)
  - CORS: configurable origins for dashboard frontends on other ports

Route Groups:

1. Health (/api/v1/health/):
  - Liveness (live) and readiness (ready) probes

2. Session (/api/v1/session):
  - GET current snapshot {state, user, error}
  - POST login, logout, refresh delegating to the session state machine

3. Catalog (/api/v1/catalog/):
  - trending, search, details, availability pass-through reads
    served cache-aside from the TTL cache

4. WebSocket (/api/v1/ws):
  - Hub upgrade; re-broadcasts download-progress events and
    session state changes to connected dashboards

5. Observability (/metrics):
  - Prometheus exposition

Usage Example:

	import (
	    "github.com/tomtom215/watchdeck/internal/api"
	    "github.com/tomtom215/watchdeck/internal/config"
	)

	handler := api.NewHandler(sessionMgr, catalogSvc, hub, cfg, version)
	router := api.NewRouter(handler, cfg)

	http.ListenAndServe(":8480", router.Setup())

Thread Safety:

All handlers are safe for concurrent request handling. Shared resources
(session manager, catalog service, hub) carry their own synchronization.

See Also:

  - internal/session: session lifecycle state machine
  - internal/catalog: cached catalog gateway
  - internal/websocket: dashboard broadcast hub
*/
package api
