// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
	"github.com/tomtom215/watchdeck/internal/realtime"
)

// Message types sent to dashboard clients.
const (
	// MessageTypeDownloadProgress carries a download progress update
	// re-broadcast from the backend's realtime channel.
	MessageTypeDownloadProgress = "download-progress"

	// MessageTypeSessionState announces a session state transition.
	MessageTypeSessionState = "session-state"

	// MessageTypePing and MessageTypePong implement client-initiated
	// keepalive.
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the envelope for everything sent to dashboard clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SessionStateData is the payload of a session-state message.
type SessionStateData struct {
	State     string `json:"state"`
	Username  string `json:"username,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of connected dashboard clients and broadcasts
// messages to them. Lifecycle events and broadcasts are serialized on the
// RunWithContext goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub. Nothing runs until RunWithContext is started.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub loop until ctx is canceled, then closes every
// connected client and returns ctx.Err(). Designed to run under suture
// supervision: a restart starts with a clean client set.
//
// Selection is priority-based so behavior stays predictable when several
// channels are ready at once: shutdown first, then client lifecycle, then
// broadcasts.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SetHubClients(total)
	logging.Info().Int("total_clients", total).Msg("Dashboard client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.SetHubClients(total)
	logging.Info().Int("total_clients", total).Msg("Dashboard client disconnected")
}

// shutdown closes all clients and logs the reason. Cancellation is the
// normal path here, so ctx.Err() is logged as a field, not an error.
func (h *Hub) shutdown(ctx context.Context) {
	count := h.GetClientCount()
	h.closeAllClients()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", count).
		Msg("Dashboard hub stopped")
}

// broadcastToClients delivers a message to every client in client-ID order.
// A client whose send queue is full is dropped: a stuck dashboard tab must
// not hold up the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.RecordHubMessageDropped()
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping slow dashboard client")
	}
	if len(toRemove) > 0 {
		metrics.SetHubClients(len(h.clients))
	}
}

// closeAllClients closes every connected client in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.SetHubClients(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue hands a message to the hub loop without blocking the caller. The
// hub is an at-most-once fanout: when the queue is full the message is
// dropped and counted.
func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
		metrics.RecordHubBroadcast(message.Type)
	default:
		metrics.RecordHubMessageDropped()
		logging.Warn().Str("message_type", message.Type).Msg("Broadcast queue full, dropping message")
	}
}

// BroadcastEvent re-broadcasts a raw upstream event under its own type. The
// payload passes through untouched.
func (h *Hub) BroadcastEvent(ev realtime.Event) {
	h.enqueue(Message{Type: ev.Type, Data: ev.Payload})
}

// BroadcastDownloadProgress sends a typed download progress update to all
// clients.
func (h *Hub) BroadcastDownloadProgress(p realtime.DownloadProgress) {
	h.enqueue(Message{Type: MessageTypeDownloadProgress, Data: p})
}

// BroadcastSessionState announces a session state transition to all clients.
func (h *Hub) BroadcastSessionState(state, username string) {
	h.enqueue(Message{
		Type: MessageTypeSessionState,
		Data: SessionStateData{
			State:     state,
			Username:  username,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
