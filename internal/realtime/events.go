// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package realtime

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// EventDownloadProgress is the event type the backend emits for torrent
// download progress updates.
const EventDownloadProgress = "download-progress"

// Event is a tagged frame on the realtime channel, inbound or outbound.
// Payload stays raw until a subscriber that knows the type decodes it.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent builds an Event with payload marshaled to JSON.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data}, nil
}

// Handler receives dispatched events. Handlers run on the channel's read
// goroutine in subscription order; a panicking handler is recovered and
// later handlers still run.
type Handler func(Event)

// DownloadProgress is the payload of download-progress events: the
// backend's pre-formatted view of one active download.
type DownloadProgress struct {
	TorrentName string  `json:"torrentName"`
	Progress    float64 `json:"progress"`
	Speed       string  `json:"speed"`
	ETA         string  `json:"eta"`
}

// SubscribeDownloadProgress registers a typed handler for download-progress
// events and returns its unsubscribe handle. Payloads that fail to decode
// are counted as parse errors and dropped without reaching fn.
func (c *Channel) SubscribeDownloadProgress(fn func(DownloadProgress)) (unsubscribe func()) {
	return c.Subscribe(func(ev Event) {
		if ev.Type != EventDownloadProgress {
			return
		}
		var progress DownloadProgress
		if err := json.Unmarshal(ev.Payload, &progress); err != nil {
			logging.Warn().Err(err).Msg("Undecodable download-progress payload")
			metrics.RecordChannelParseError()
			return
		}
		fn(progress)
	})
}
