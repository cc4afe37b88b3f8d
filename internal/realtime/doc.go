// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package realtime maintains the persistent websocket connection to the
// backend's event stream. A Channel dials once on Connect and then heals
// itself: every drop moves it to Reconnecting and one attempt is scheduled
// per fixed delay period, forever, until Disconnect. Inbound frames are
// tagged events fanned out to subscribers in subscription order.
package realtime
