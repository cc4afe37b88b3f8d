// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/clock"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
	"github.com/tomtom215/watchdeck/internal/realtime"
)

// Backend is the slice of the auth backend the manager drives. *auth.Client
// satisfies it.
type Backend interface {
	Login(ctx context.Context, creds *auth.Credentials) (*auth.TokenPair, *auth.UserProfile, error)
	Verify(ctx context.Context, accessToken string) (*auth.UserProfile, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// EventChannel is the slice of realtime.Channel the manager owns. Exactly one
// channel exists per authenticated session; the manager opens it on login or
// restore and closes it before the session leaves the authenticated state.
type EventChannel interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() realtime.State
}

// ChannelFactory builds a fresh event channel for a newly authenticated
// session. The channel reads credentials at dial time (realtime.Options
// BearerToken), so the factory takes no arguments.
type ChannelFactory func() EventChannel

// ChangeHandler receives session snapshots in transition order. Handlers run
// on the goroutine that performed the transition and must return promptly;
// a handler that needs to call back into the Manager must do so from a new
// goroutine.
type ChangeHandler func(Snapshot)

type changeSubscription struct {
	id int
	fn ChangeHandler
}

// Options configures a Manager.
type Options struct {
	Store   auth.TokenStore
	Backend Backend
	Channel ChannelFactory // nil runs the session without a realtime channel
	Clock   clock.Clock    // nil uses the system clock
}

// Manager is the session state machine. It is the only writer of the token
// store, the sole owner of the realtime channel, and the serialization point
// for init, login, logout and refresh. All methods are safe for concurrent
// use.
type Manager struct {
	store   auth.TokenStore
	backend Backend
	factory ChannelFactory
	clk     clock.Clock

	mu          sync.Mutex
	state       State
	user        *auth.UserProfile
	errMsg      string
	pair        *auth.TokenPair
	channel     EventChannel
	epoch       uint64
	initialized bool
	initFlight  *inflight[Snapshot]
	refreshing  *inflight[bool]
	queue       []Snapshot

	// notifyMu serializes subscriber dispatch so snapshots arrive in
	// transition order even when transitions race.
	notifyMu sync.Mutex

	subMu  sync.RWMutex
	subs   []changeSubscription
	nextID int
}

// New builds a Manager in the Unauthenticated state. Nothing is loaded from
// the store until Init runs.
func New(opts Options) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	m := &Manager{
		store:   opts.Store,
		backend: opts.Backend,
		factory: opts.Channel,
		clk:     clk,
		state:   StateUnauthenticated,
	}
	metrics.SetSessionState(m.state.String())
	return m
}

// Current returns a snapshot of the session. The snapshot is a copy; callers
// may retain it.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Initialized reports whether a startup restore has completed. It stays false
// after an Init that ended in the Error state, so a supervised retry runs the
// restore chain again.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Init restores the session from the token store: load the persisted pair,
// verify it against the backend, and fall back to a single refresh plus
// re-verify when the access token is rejected. Concurrent callers coalesce
// onto one restore chain and all receive its result. Once a restore has
// completed, later calls return the current snapshot without touching the
// store or the backend.
//
// A failure of the store itself leaves the session in the Error state and
// returns the error; every auth-level failure resolves to a clean
// Unauthenticated session with the stale pair cleared.
func (m *Manager) Init(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if f := m.initFlight; f != nil {
		m.mu.Unlock()
		metrics.RecordInitCoalesced()
		return f.wait(ctx)
	}
	if m.initialized || m.state == StateAuthenticated || m.state == StateRefreshing {
		// A login that beat Init to the backend already produced a live
		// session; there is nothing left to restore.
		m.initialized = true
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	f := newInflight[Snapshot]()
	m.initFlight = f
	epoch := m.epoch
	m.setStateLocked(StateInitializing, nil, "")
	m.mu.Unlock()
	m.drainNotifications()

	start := time.Now()
	snap, err := m.runInit(ctx, epoch)

	m.mu.Lock()
	m.initFlight = nil
	if err == nil {
		m.initialized = true
	}
	m.mu.Unlock()
	f.resolve(snap, err)
	metrics.RecordSessionOperation("init", initOutcome(snap, err), time.Since(start))
	return snap, err
}

func initOutcome(snap Snapshot, err error) string {
	switch {
	case err != nil:
		return "error"
	case snap.State == StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

func (m *Manager) runInit(ctx context.Context, epoch uint64) (Snapshot, error) {
	// The restore chain keeps running once started; callers abandoning the
	// wait must not cancel the network calls mid-flight.
	bg := context.WithoutCancel(ctx)

	pair, err := m.store.Load(bg)
	if errors.Is(err, auth.ErrNoTokens) {
		logging.Debug().Msg("No stored tokens; starting unauthenticated")
		return m.commit(epoch, StateUnauthenticated, nil, nil, ""), nil
	}
	if err != nil {
		err = fmt.Errorf("load stored tokens: %w", err)
		logging.Error().Err(err).Msg("Session init failed")
		return m.commit(epoch, StateError, nil, nil, err.Error()), err
	}

	user, verifyErr := m.backend.Verify(bg, pair.AccessToken)
	if verifyErr != nil {
		logging.Debug().Err(verifyErr).Msg("Stored access token rejected; trying one refresh")
		newPair, refreshErr := m.backend.Refresh(bg, pair.RefreshToken)
		if refreshErr != nil {
			logging.Info().Str("reason", auth.Kind(refreshErr)).Msg("Session restore failed; clearing stored tokens")
			return m.commitCleared(bg, epoch), nil
		}
		raced, saveErr := m.saveWithEpoch(bg, epoch, newPair)
		if raced {
			return m.currentSnapshot(), nil
		}
		if saveErr != nil {
			err = fmt.Errorf("persist refreshed tokens: %w", saveErr)
			logging.Error().Err(err).Msg("Session init failed")
			return m.commit(epoch, StateError, nil, nil, err.Error()), err
		}
		pair = newPair
		user, verifyErr = m.backend.Verify(bg, pair.AccessToken)
		if verifyErr != nil {
			logging.Info().Str("reason", auth.Kind(verifyErr)).Msg("Refreshed token still rejected; clearing stored tokens")
			return m.commitCleared(bg, epoch), nil
		}
	}

	logging.Info().Str("username", user.Username).Msg("Session restored from stored tokens")
	snap := m.commit(epoch, StateAuthenticated, user, pair, "")
	m.openChannel(ctx)
	return snap, nil
}

// Login authenticates against the backend. On success the returned pair is
// persisted, the session transitions to Authenticated and the realtime
// channel is opened. On failure the session, the store and any existing
// channel are left untouched and the result carries a user-facing message.
func (m *Manager) Login(ctx context.Context, creds *auth.Credentials) LoginResult {
	start := time.Now()
	pair, user, err := m.backend.Login(ctx, creds)
	if err != nil {
		logging.Info().Str("username", creds.Username).Str("reason", auth.Kind(err)).Msg("Login rejected")
		metrics.RecordSessionOperation("login", auth.Kind(err), time.Since(start))
		return LoginResult{Error: messageFor(err)}
	}

	m.mu.Lock()
	m.epoch++
	if err := m.store.Save(ctx, pair); err != nil {
		m.mu.Unlock()
		logging.Error().Err(err).Msg("Token store save failed during login")
		metrics.RecordSessionOperation("login", "store_error", time.Since(start))
		return LoginResult{Error: "Login failed"}
	}
	m.pair = pair.Clone()
	old := m.channel
	m.channel = nil
	m.setStateLocked(StateAuthenticated, user, "")
	m.mu.Unlock()
	metrics.SetTokenExpiry(pair.ExpiresAt)
	m.drainNotifications()

	if old != nil {
		old.Disconnect()
	}
	m.openChannel(ctx)

	logging.Info().Str("username", user.Username).Bool("remember_me", creds.RememberMe).Msg("Login succeeded")
	metrics.RecordSessionOperation("login", "success", time.Since(start))
	return LoginResult{Success: true, User: user.Clone()}
}

// Logout tears the session down: the channel closes first, the backend is
// told best-effort, and the store and in-memory state reset unconditionally,
// whatever the backend said. An in-flight refresh that completes after
// Logout has started finds its epoch stale and discards its result.
func (m *Manager) Logout(ctx context.Context) {
	start := time.Now()
	m.mu.Lock()
	m.epoch++
	ch := m.channel
	m.channel = nil
	var access string
	if m.pair != nil {
		access = m.pair.AccessToken
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if err := m.store.Clear(ctx); err != nil {
			logging.Error().Err(err).Msg("Token store clear failed during logout")
		}
		m.pair = nil
		m.setStateLocked(StateUnauthenticated, nil, "")
		m.mu.Unlock()
		metrics.SetTokenExpiry(time.Time{})
		m.drainNotifications()
		metrics.RecordSessionOperation("logout", "success", time.Since(start))
		logging.Info().Msg("Logged out")
	}()

	if ch != nil {
		ch.Disconnect()
	}
	if access != "" {
		if err := m.backend.Logout(ctx, access); err != nil {
			logging.Warn().Err(err).Msg("Backend logout failed; proceeding with local cleanup")
		}
	}
}

// RefreshToken rotates the token pair. Concurrent callers coalesce onto one
// backend call and all receive its outcome. Returns true when the session
// holds a freshly persisted pair; a refresh rejected by the backend forces a
// full logout and returns false.
func (m *Manager) RefreshToken(ctx context.Context) bool {
	m.mu.Lock()
	if f := m.refreshing; f != nil {
		m.mu.Unlock()
		ok, err := f.wait(ctx)
		return err == nil && ok
	}
	if m.state != StateAuthenticated || m.pair == nil {
		m.mu.Unlock()
		return false
	}
	f := newInflight[bool]()
	m.refreshing = f
	epoch := m.epoch
	refreshToken := m.pair.RefreshToken
	m.setStateLocked(StateRefreshing, m.user, "")
	m.mu.Unlock()
	m.drainNotifications()

	ok := m.runRefresh(ctx, epoch, refreshToken)

	m.mu.Lock()
	m.refreshing = nil
	m.mu.Unlock()
	f.resolve(ok, nil)
	return ok
}

func (m *Manager) runRefresh(ctx context.Context, epoch uint64, refreshToken string) bool {
	start := time.Now()
	bg := context.WithoutCancel(ctx)

	newPair, err := m.backend.Refresh(bg, refreshToken)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		logging.Debug().Msg("Refresh result discarded; a later session operation won")
		metrics.RecordSessionOperation("refresh", "discarded", time.Since(start))
		return false
	}
	if err == nil {
		if saveErr := m.store.Save(bg, newPair); saveErr != nil {
			err = fmt.Errorf("persist rotated tokens: %w", saveErr)
		}
	}
	if err != nil {
		m.mu.Unlock()
		logging.Warn().Str("reason", auth.Kind(err)).Err(err).Msg("Token refresh failed; forcing logout")
		metrics.RecordSessionOperation("refresh", auth.Kind(err), time.Since(start))
		m.Logout(ctx)
		return false
	}
	m.pair = newPair.Clone()
	m.setStateLocked(StateAuthenticated, m.user, "")
	m.mu.Unlock()
	metrics.SetTokenExpiry(newPair.ExpiresAt)
	m.drainNotifications()
	logging.Debug().Time("expires_at", newPair.ExpiresAt).Msg("Token pair rotated")
	metrics.RecordSessionOperation("refresh", "success", time.Since(start))
	return true
}

// AccessToken returns the access token to attach to a proxied request. A
// token at or past its expiry instant is rotated first, so a detected expiry
// takes the same Refreshing path as a backend 401. Returns false when no
// authenticated session exists or rotation failed.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	usable := m.state == StateAuthenticated || m.state == StateRefreshing
	pair := m.pair
	m.mu.Unlock()
	if !usable || pair == nil {
		return "", false
	}
	if !pair.ExpiresAt.IsZero() && !m.clk.Now().Before(pair.ExpiresAt) {
		logging.Debug().Time("expired_at", pair.ExpiresAt).Msg("Access token expired; rotating before use")
		if !m.RefreshToken(ctx) {
			return "", false
		}
		m.mu.Lock()
		pair = m.pair
		m.mu.Unlock()
		if pair == nil {
			return "", false
		}
	}
	return pair.AccessToken, true
}

// CurrentAccessToken returns the working access token without triggering a
// rotation, or "" when none exists. The realtime channel reads it at dial
// time so reconnect attempts always carry the latest credentials.
func (m *Manager) CurrentAccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair == nil {
		return ""
	}
	return m.pair.AccessToken
}

// TokenExpiresAt returns the access token expiry instant, or the zero time
// when no pair is held.
func (m *Manager) TokenExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair == nil {
		return time.Time{}
	}
	return m.pair.ExpiresAt
}

// ChannelState reports the realtime channel state, or realtime.StateClosed
// when no channel exists.
func (m *Manager) ChannelState() realtime.State {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	if ch == nil {
		return realtime.StateClosed
	}
	return ch.State()
}

// Maintain performs the periodic self-checks the session runner drives: an
// expired access token is rotated and a channel whose dial failed is
// re-armed. Safe to call in any state.
func (m *Manager) Maintain(ctx context.Context) {
	m.mu.Lock()
	state := m.state
	pair := m.pair
	ch := m.channel
	m.mu.Unlock()

	if state != StateAuthenticated {
		return
	}
	if pair != nil && !pair.ExpiresAt.IsZero() && !m.clk.Now().Before(pair.ExpiresAt) {
		if !m.RefreshToken(ctx) {
			return
		}
	}
	if ch != nil && ch.State() == realtime.StateClosed {
		logging.Debug().Msg("Re-arming realtime channel")
		if err := ch.Connect(ctx); err != nil {
			logging.Debug().Err(err).Msg("Realtime channel redial failed")
		}
		m.dropIfReplaced(ch)
	}
}

// OnChange registers a state-change handler and returns its unsubscribe
// function. Handlers receive every transition in order, including those that
// happened while a previous handler invocation was still running.
func (m *Manager) OnChange(fn ChangeHandler) func() {
	m.subMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, changeSubscription{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// openChannel builds and dials the realtime channel for an authenticated
// session. A failed dial is not fatal; Maintain re-arms the channel while
// the session stays authenticated.
func (m *Manager) openChannel(ctx context.Context) {
	if m.factory == nil {
		return
	}
	m.mu.Lock()
	if m.state != StateAuthenticated || m.channel != nil {
		m.mu.Unlock()
		return
	}
	ch := m.factory()
	m.channel = ch
	m.mu.Unlock()

	if err := ch.Connect(ctx); err != nil {
		logging.Warn().Err(err).Msg("Realtime channel dial failed; will retry while authenticated")
	}
	m.dropIfReplaced(ch)
}

// dropIfReplaced closes ch when a concurrent logout or login already swapped
// it out of the session while a dial was in flight.
func (m *Manager) dropIfReplaced(ch EventChannel) {
	m.mu.Lock()
	stale := m.channel != ch
	m.mu.Unlock()
	if stale {
		ch.Disconnect()
	}
}

// commit applies an init outcome unless a login or logout raced the restore
// chain, in which case the later operation wins and init resolves with
// whatever session it produced.
func (m *Manager) commit(epoch uint64, s State, user *auth.UserProfile, pair *auth.TokenPair, errMsg string) Snapshot {
	m.mu.Lock()
	if m.epoch != epoch {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		logging.Debug().Msg("Init result discarded; a later session operation won")
		return snap
	}
	if pair != nil {
		m.pair = pair.Clone()
	}
	m.setStateLocked(s, user, errMsg)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if pair != nil {
		metrics.SetTokenExpiry(pair.ExpiresAt)
	}
	m.drainNotifications()
	return snap
}

// commitCleared wipes the stale pair from the store and resolves the restore
// chain to Unauthenticated, unless a later operation won the race.
func (m *Manager) commitCleared(ctx context.Context, epoch uint64) Snapshot {
	m.mu.Lock()
	if m.epoch != epoch {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}
	if err := m.store.Clear(ctx); err != nil {
		logging.Error().Err(err).Msg("Token store clear failed during init")
	}
	m.pair = nil
	m.setStateLocked(StateUnauthenticated, nil, "")
	snap := m.snapshotLocked()
	m.mu.Unlock()
	metrics.SetTokenExpiry(time.Time{})
	m.drainNotifications()
	return snap
}

// saveWithEpoch persists a rotated pair produced by the restore chain unless
// a later operation won the race.
func (m *Manager) saveWithEpoch(ctx context.Context, epoch uint64, pair *auth.TokenPair) (raced bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return true, nil
	}
	return false, m.store.Save(ctx, pair)
}

func (m *Manager) currentSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked builds a caller-owned copy of the session state. m.mu must
// be held.
func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, User: m.user.Clone(), Error: m.errMsg}
}

// setStateLocked records a transition and queues its snapshot for dispatch.
// m.mu must be held; the caller drains the queue after releasing it.
func (m *Manager) setStateLocked(s State, user *auth.UserProfile, errMsg string) {
	if m.state == s && m.user == user && m.errMsg == errMsg {
		return
	}
	from := m.state
	m.state = s
	m.user = user
	m.errMsg = errMsg
	if from != s {
		logging.Debug().Str("from", from.String()).Str("to", s.String()).Msg("Session state changed")
		metrics.RecordSessionTransition(from.String(), s.String())
		metrics.SetSessionState(s.String())
	}
	m.queue = append(m.queue, m.snapshotLocked())
}

// drainNotifications dispatches queued snapshots to subscribers in order.
// notifyMu makes the dispatch a serialization point: a transition that
// happens while another is being announced queues behind it rather than
// interleaving with it.
func (m *Manager) drainNotifications() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		snap := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.subMu.RLock()
		subs := make([]changeSubscription, len(m.subs))
		copy(subs, m.subs)
		m.subMu.RUnlock()
		for _, s := range subs {
			m.notify(s.fn, snap)
		}
	}
}

func (m *Manager) notify(fn ChangeHandler, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("state", snap.State.String()).
				Msg("Session subscriber panicked")
		}
	}()
	fn(snap)
}
