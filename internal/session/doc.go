// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package session owns the authenticated session against the dashboard
backend: one Manager per process drives the state machine

	Unauthenticated -> Initializing -> Authenticated | Unauthenticated | Error

and, from Authenticated, Refreshing on a 401 or detected expiry, and back
to Unauthenticated on logout or refresh failure.

The Manager is the single writer of the token store and the sole owner of
the realtime channel: the channel is opened when the session becomes
authenticated and closed, synchronously, before anything else happens on
logout. Everyone else is a read-only consumer: Current for polling,
OnChange for push, AccessToken/RefreshToken for proxy layers attaching
bearer tokens and reacting to a 401.

Init is single-flight: callers that arrive while an initialization is in
progress attach to the one in-flight execution and observe its result
instead of racing their own verify/refresh sequences against the store.
Refresh coalesces the same way, so a burst of 401s costs one backend call.
*/
package session
