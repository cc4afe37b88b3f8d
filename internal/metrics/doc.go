// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package metrics provides Prometheus metrics collection and export for
observability.

# Overview

The package instruments every layer of the daemon:
  - Session state machine: current state, transitions, operation outcomes
    and durations, coalesced Init callers, token expiry
  - Realtime channel: current state, reconnect attempts, message traffic,
    parse errors, recovered subscriber panics
  - TTL cache: hits, misses, evictions and size per named cache
  - Upstream backend: request outcomes and latency per service and
    operation, rate limiter waits
  - Circuit breaker: state, request results, transitions
  - Local surface: dashboard hub clients and broadcasts, API request
    latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8480/metrics

# State Gauges

session_state and channel_state are one-hot gauge vectors: the label of the
active state reads 1 and every other label reads 0. Dashboards plot the
active state as a step function with

	max by (state) (session_state == 1)

# Usage Example

	start := time.Now()
	user, err := backend.Verify(ctx, token)
	metrics.RecordUpstreamRequest("auth", "verify", outcome(err), time.Since(start))

All recording functions are safe for concurrent use; the Prometheus client
library handles synchronization internally.

# Cardinality

Label values are drawn from small fixed sets (states, operations, outcome
kinds, cache names). No user identifiers, request IDs or raw error strings
ever become labels.
*/
package metrics
