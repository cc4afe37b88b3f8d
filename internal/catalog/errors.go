// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package catalog

import "errors"

var (
	// ErrNoSession means no authenticated session exists to attach to the
	// request, or the backend rejected the token and a refresh could not
	// produce a new one.
	ErrNoSession = errors.New("catalog: no authenticated session")

	// ErrNotFound means the backend has no entry for the requested item.
	ErrNotFound = errors.New("catalog: not found")

	// ErrUpstream covers transport failures and unexpected backend
	// responses.
	ErrUpstream = errors.New("catalog: upstream error")
)
