// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import "errors"

// Error kinds surfaced by AuthBackend calls and the token stores.
// Callers classify with errors.Is; wrapped causes stay inspectable.
var (
	// ErrInvalidCredentials indicates the backend rejected a login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired indicates the presented token's lifetime has lapsed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the presented token was rejected for any
	// reason other than expiry (malformed, revoked, unknown).
	ErrTokenInvalid = errors.New("token invalid")

	// ErrNetwork indicates the backend could not be reached or answered
	// outside its contract (transport failure, 5xx, undecodable body).
	ErrNetwork = errors.New("network error")

	// ErrNoTokens indicates the token store holds no pair. Expected on
	// first run and after Clear; not a failure.
	ErrNoTokens = errors.New("no stored tokens")
)

// Wire error codes used by the backend's auth endpoints.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
)

// Kind returns a short stable label for an auth error, for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNoTokens):
		return "no_tokens"
	default:
		return "unknown"
	}
}
