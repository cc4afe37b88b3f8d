// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package realtime

import "errors"

var (
	// ErrConnectFailed indicates an explicit Connect could not establish
	// the websocket connection. Reconnect attempts never surface it;
	// they log and reschedule instead.
	ErrConnectFailed = errors.New("channel connect failed")

	// ErrNotOpen indicates Send was called while the channel was not in
	// the Open state.
	ErrNotOpen = errors.New("channel not open")

	// ErrMessageParse indicates an inbound frame could not be decoded as
	// a tagged event. Bad frames are counted and dropped, never fatal.
	ErrMessageParse = errors.New("channel message parse error")
)
