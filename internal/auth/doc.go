// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package auth defines the credential model for the dashboard backend: the
// access/refresh token pair, its durable stores (in-memory and BadgerDB), the
// AuthBackend client speaking the backend's REST auth contract, and the error
// kinds callers classify with errors.Is.
//
// Nothing here validates token contents. The backend is the authority; the
// stores only persist what it issued. The session manager in internal/session
// is the single writer of the token store.
package auth
