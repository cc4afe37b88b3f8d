// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchdeck/internal/clock"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// State is the lifecycle state of a Channel.
type State int

const (
	// StateClosed means no connection exists and none is pending.
	StateClosed State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means the connection is established and events flow.
	StateOpen

	// StateReconnecting means the connection dropped and one attempt is
	// scheduled after the fixed reconnect delay.
	StateReconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	defaultReconnectDelay   = 5 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second

	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a silent connection is trusted before the read
	// deadline declares it dead. Must exceed the ping interval.
	pongWait = 60 * time.Second
)

// Options configures a Channel.
type Options struct {
	// URL is the ws:// or wss:// endpoint of the backend event stream.
	URL string

	// Header is sent with the dial request.
	Header http.Header

	// BearerToken, when set, is called at every dial to produce the
	// Authorization credential, so reconnect attempts pick up rotated
	// tokens. A non-empty result overrides any Authorization value in
	// Header.
	BearerToken func() string

	// ReconnectDelay is the fixed pause between a drop and the next
	// attempt. Zero means 5 seconds. There is no backoff: the delay
	// stays fixed however many attempts fail.
	ReconnectDelay time.Duration

	// PingInterval is the keepalive cadence. Zero means 30 seconds.
	PingInterval time.Duration

	// HandshakeTimeout bounds a single dial. Zero means 10 seconds.
	HandshakeTimeout time.Duration

	// Clock drives the reconnect timer. Nil means the system clock.
	Clock clock.Clock
}

// Channel is a self-healing websocket connection to the backend's event
// stream. Inbound frames are tagged events dispatched to subscribers in
// subscription order; a dropped connection moves the channel to
// Reconnecting and exactly one attempt is scheduled per delay period,
// forever, until Disconnect.
//
// All methods are safe for concurrent use.
type Channel struct {
	url    string
	header http.Header
	bearer func() string
	delay  time.Duration
	ping   time.Duration
	clk    clock.Clock
	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	connDone  chan struct{} // closed when the current connection is torn down
	gen       uint64        // bumped per connection and per Disconnect
	reconnect *reconnectHandle

	writeMu sync.Mutex // serializes Send calls on one connection

	wg sync.WaitGroup // listen + ping goroutines

	subMu  sync.RWMutex
	subs   []subscription
	nextID int
}

type subscription struct {
	id int
	fn Handler
}

type reconnectHandle struct {
	timer  clock.Timer
	cancel chan struct{}
}

// New creates a Channel in the Closed state. Nothing connects until
// Connect is called.
func New(opts Options) *Channel {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}

	return &Channel{
		url:    opts.URL,
		header: opts.Header,
		bearer: opts.BearerToken,
		delay:  delay,
		ping:   ping,
		clk:    clk,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  handshake,
			EnableCompression: true,
		},
		state: StateClosed,
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection. Calling it while the channel is
// already Connecting, Open or Reconnecting is a no-op returning nil. A
// failed dial returns ErrConnectFailed and leaves the channel Closed; the
// internal retry loop only engages after a connection that was Open drops.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.dialOnce(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting || c.gen != gen {
		// Disconnect won the race; discard whatever the dial produced.
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.setStateLocked(StateClosed)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	c.startLocked(conn)
	return nil
}

// Disconnect closes the channel: the connection is shut down, any pending
// reconnect is canceled, and no further attempts or events follow. Safe to
// call in any state; disconnecting a Closed channel is a no-op.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.cancelReconnectLocked()
	c.closeConnLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Channel disconnected")
}

// Subscribe registers fn for every inbound event and returns its
// unsubscribe handle. Handlers run in subscription order; unsubscribing
// twice is a no-op.
func (c *Channel) Subscribe(fn Handler) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
		c.subMu.Unlock()
	}
}

// Send writes an event to the backend. Valid only while Open; any other
// state returns ErrNotOpen.
func (c *Channel) Send(ev Event) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return ErrNotOpen
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s event: %w", ev.Type, err)
	}
	metrics.RecordChannelMessage("out")
	return nil
}

// dialOnce performs a single websocket dial.
func (c *Channel) dialOnce(ctx context.Context) (*websocket.Conn, error) {
	header := c.header
	if c.bearer != nil {
		header = c.header.Clone()
		if header == nil {
			header = http.Header{}
		}
		if tok := c.bearer(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// startLocked adopts a freshly dialed connection: state moves to Open and
// the read and keepalive goroutines start for this connection generation.
// Caller must hold c.mu.
func (c *Channel) startLocked(conn *websocket.Conn) {
	c.gen++
	c.conn = conn
	c.connDone = make(chan struct{})
	c.setStateLocked(StateOpen)
	logging.Info().Str("url", c.url).Msg("Channel connected")

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.wg.Add(2)
	go c.listen(conn, c.gen)
	go c.pingLoop(conn, c.gen, c.connDone)
}

// listen reads frames until the connection fails, then reports the drop.
func (c *Channel) listen(conn *websocket.Conn, gen uint64) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connLost(gen, err)
			return
		}
		metrics.RecordChannelMessage("in")

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warn().Err(err).Msg("Undecodable channel frame")
			metrics.RecordChannelParseError()
			continue
		}
		c.dispatch(ev)
	}
}

// pingLoop keeps the connection alive. A failed ping tears the connection
// down so listen's read fails fast instead of waiting out the deadline.
func (c *Channel) pingLoop(conn *websocket.Conn, gen uint64, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.connLost(gen, fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// dispatch delivers ev to every subscriber in subscription order.
func (c *Channel) dispatch(ev Event) {
	c.subMu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		c.invoke(s.fn, ev)
	}
}

// invoke shields the dispatch loop from a panicking handler: later
// handlers still run and the channel stays up.
func (c *Channel) invoke(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("event_type", ev.Type).
				Msg("Channel subscriber panicked")
			metrics.RecordChannelHandlerPanic()
		}
	}()
	fn(ev)
}

// connLost handles an unexpected drop of connection generation gen: tear
// down, move to Reconnecting, and schedule exactly one attempt. Stale
// reports from already-replaced connections are ignored.
func (c *Channel) connLost(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateOpen {
		return
	}

	logging.Warn().Err(cause).Dur("reconnect_in", c.delay).Msg("Channel connection lost")
	c.closeConnLocked()
	c.setStateLocked(StateReconnecting)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer for exactly one attempt
// after the fixed delay. Caller must hold c.mu with state Reconnecting.
func (c *Channel) scheduleReconnectLocked() {
	handle := &reconnectHandle{
		timer:  c.clk.NewTimer(c.delay),
		cancel: make(chan struct{}),
	}
	c.reconnect = handle
	gen := c.gen

	// Not wg-tracked: a Disconnect during the dial must not block waiting
	// for the handshake timeout. The generation check discards the result.
	go func() {
		select {
		case <-handle.timer.C():
			c.attemptReconnect(gen)
		case <-handle.cancel:
		}
	}()
}

// cancelReconnectLocked stops a pending reconnect, if any. Caller must
// hold c.mu.
func (c *Channel) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.timer.Stop()
		close(c.reconnect.cancel)
		c.reconnect = nil
	}
}

// attemptReconnect runs when the reconnect timer fires: one dial, Open on
// success, otherwise back to Reconnecting with the next attempt scheduled.
func (c *Channel) attemptReconnect(gen uint64) {
	c.mu.Lock()
	if c.state != StateReconnecting || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	metrics.RecordChannelReconnect()
	conn, err := c.dialOnce(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting || c.gen != gen {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		logging.Warn().Err(err).Dur("retry_in", c.delay).Msg("Channel reconnect failed")
		c.setStateLocked(StateReconnecting)
		c.scheduleReconnectLocked()
		return
	}
	c.startLocked(conn)
}

// closeConnLocked closes the current connection with a best-effort close
// frame and releases its keepalive goroutine. Caller must hold c.mu.
func (c *Channel) closeConnLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		logging.Debug().Err(err).Msg("Channel close frame not sent")
	}
	if err := c.conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Channel connection close error")
	}
	c.conn = nil
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
}

// setStateLocked applies a state transition. Caller must hold c.mu.
func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	logging.Debug().
		Str("from", c.state.String()).
		Str("to", s.String()).
		Msg("Channel state changed")
	c.state = s
	metrics.SetChannelState(s.String())
}

// WebSocketURL converts an http(s) base URL and path into the matching
// ws(s) URL.
func WebSocketURL(baseURL, path string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
		// Already a websocket URL.
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	return parsed.ResolveReference(rel).String(), nil
}
