// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package supervisor provides process supervision for Watchdeck using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running pieces of the daemon. It provides Erlang/OTP
style supervision with automatic restart, failure isolation, and graceful
shutdown.

# Overview

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("watchdeck")
	├── SessionSupervisor ("session-layer")
	│   ├── SessionService (restore, headless login, periodic upkeep)
	│   └── CacheJanitorService (expired catalog entry sweeps)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocketHubService (dashboard fan-out hub)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A session restore crash doesn't drop dashboard WebSocket connections
  - A hub failure doesn't take down the HTTP surface
  - The API keeps serving health probes and cached catalog responses while
    the session layer restarts

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - suture events flow through sutureslog into the zerolog backbone
    (internal/logging provides the slog.Handler adapter)
  - Logs service starts, stops, failures, and restarts

# Usage Example

Basic setup in main:

	import (
	    "github.com/tomtom215/watchdeck/internal/logging"
	    "github.com/tomtom215/watchdeck/internal/supervisor"
	    "github.com/tomtom215/watchdeck/internal/supervisor/services"
	)

	func main() {
	    tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	    if err != nil {
	        logging.Fatal().Err(err).Msg("Supervisor setup failed")
	    }

	    tree.AddSessionService(services.NewSessionService(manager, cfg.Credentials, cfg.Channel.ReconnectDelay))
	    tree.AddMessagingService(services.NewWebSocketHubService(hub))
	    tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	    // Blocks until the context is canceled
	    if err := tree.Serve(ctx); err != nil {
	        logging.Error().Err(err).Msg("Supervisor stopped")
	    }
	}

Background operation:

	errChan := tree.ServeBackground(ctx)

	// Do other setup...

	if err := <-errChan; err != nil {
	    logging.Error().Err(err).Msg("Supervisor error")
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Failure Handling

The supervisor uses a failure counter with exponential decay:

 1. Each service failure increments the counter
 2. Counter decays exponentially over time (FailureDecay seconds)
 3. When counter exceeds FailureThreshold, supervisor enters backoff
 4. During backoff, restarts are delayed by FailureBackoff duration

The session runner leans on this deliberately: a failed restore (token
store unreachable) returns an error, so the supervisor re-runs the restore
chain with decaying frequency instead of the daemon hand-rolling a retry
loop.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# What Is NOT Supervised

The realtime channel to the backend is not a tree service. Its reconnect
policy (fixed delay, no retry cap) lives inside internal/realtime and is
owned by the session manager; putting it under suture would layer a second
restart policy on top and the two would fight. The session runner only
re-arms a channel whose initial dial failed.

The catalog circuit breaker is embedded in the request path, not a
long-running process, so there is nothing to supervise.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines

# Thread Safety

The SupervisorTree is safe for concurrent use:
  - Services can be added from any goroutine
  - Multiple services can crash simultaneously

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
