// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package session

import (
	"errors"

	"github.com/tomtom215/watchdeck/internal/auth"
)

// State is the lifecycle state of the process-wide session.
type State int

const (
	// StateUnauthenticated means no valid session exists. Initial state,
	// and the state after logout or any failed init/refresh chain.
	StateUnauthenticated State = iota

	// StateInitializing means Init is reconciling persisted tokens with
	// the backend.
	StateInitializing

	// StateAuthenticated means a verified token pair exists and the
	// realtime channel is owned by this session.
	StateAuthenticated

	// StateRefreshing means the token pair is being rotated after a 401
	// or a detected expiry.
	StateRefreshing

	// StateError means initialization itself broke (token storage
	// failure), as opposed to an ordinary "not logged in". Surfaced
	// distinctly so callers can tell the two apart.
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name so snapshots serialize as
// "authenticated" rather than an opaque integer.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only view of the session at one committed transition.
// User is set only in Authenticated and Refreshing; Error carries the
// failure message only in StateError.
type Snapshot struct {
	State State             `json:"state"`
	User  *auth.UserProfile `json:"user,omitempty"`
	Error string            `json:"error,omitempty"`
}

// LoginResult is what Login returns across the session/UI boundary. A
// rejected login is data, not an error: Success false and a stable
// human-readable message.
type LoginResult struct {
	Success bool              `json:"success"`
	User    *auth.UserProfile `json:"user,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// messageFor maps backend auth errors to the stable messages surfaced to
// callers and shown by the dashboard.
func messageFor(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Session expired"
	case errors.Is(err, auth.ErrTokenInvalid):
		return "Session invalid"
	case errors.Is(err, auth.ErrNetwork):
		return "Backend unreachable"
	default:
		return "Login failed"
	}
}
