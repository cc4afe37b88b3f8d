// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package websocket fans events out to local dashboard clients.
//
// The Hub owns the client set and serializes registration, unregistration
// and broadcast on one goroutine, so client state is always consistent
// before a message goes out. Broadcasts are delivered in client-ID order
// and a client that cannot keep up is dropped rather than allowed to stall
// the rest.
//
// Upstream events reach the hub from the session's realtime channel
// (download progress re-broadcast as-is) and from the session manager
// (state transitions). Dashboard clients receive them as tagged JSON
// messages and may send ping frames, which are answered with pong.
package websocket
