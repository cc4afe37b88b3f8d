// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package catalog proxies the backend's media catalog (trending, search,
// details, availability) for the local dashboard.
//
// The package is layered: Client speaks HTTP to the backend with bearer
// auth, client-side rate limiting and automatic retry on HTTP 429;
// BreakerClient adds circuit breaker protection; Service adds a TTL cache
// in front so repeat lookups within a class-specific window never reach
// the backend. Payloads pass through as raw JSON, keyed and cached locally
// but never reshaped.
package catalog
