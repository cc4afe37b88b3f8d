// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/session"
)

// SessionManager matches the session.Manager methods the runner drives,
// so tests can substitute a fake.
type SessionManager interface {
	Init(ctx context.Context) (session.Snapshot, error)
	Login(ctx context.Context, creds *auth.Credentials) session.LoginResult
	Maintain(ctx context.Context)
}

// SessionService runs the session lifecycle as a supervised service:
//
//  1. Restore the persisted session via Manager.Init. A store failure is
//     returned as an error so the supervisor re-runs the restore chain
//     with its own backoff.
//  2. When the restore resolves unauthenticated and bootstrap credentials
//     are configured, perform one headless login. Failure is logged, not
//     fatal; the operator can log in through the local API.
//  3. Tick Maintain until the context is canceled, rotating expired tokens
//     and re-arming a realtime channel whose dial failed.
//
// The realtime channel itself is not supervised here. Its fixed-delay
// reconnect policy lives inside the channel, and the runner returning only
// on context cancellation keeps suture from layering a second restart
// policy on top of it.
type SessionService struct {
	manager  SessionManager
	creds    config.CredentialsConfig
	interval time.Duration
	name     string
}

// NewSessionService creates the session runner. The interval drives the
// Maintain cadence; wiring the channel reconnect delay here makes a failed
// initial dial retry at the same pace as an in-flight drop.
func NewSessionService(manager SessionManager, creds config.CredentialsConfig, interval time.Duration) *SessionService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SessionService{
		manager:  manager,
		creds:    creds,
		interval: interval,
		name:     "session-runner",
	}
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	snap, err := s.manager.Init(ctx)
	if err != nil {
		return fmt.Errorf("session restore failed: %w", err)
	}

	logging.Info().
		Str("component", "session-runner").
		Str("state", snap.State.String()).
		Msg("Session restored")

	if snap.State == session.StateUnauthenticated && s.creds.Username != "" {
		s.bootstrapLogin(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.manager.Maintain(ctx)
		}
	}
}

// bootstrapLogin performs the one headless login configured credentials
// allow. Rejections leave the daemon running in the unauthenticated state.
func (s *SessionService) bootstrapLogin(ctx context.Context) {
	result := s.manager.Login(ctx, &auth.Credentials{
		Username:   s.creds.Username,
		Password:   s.creds.Password,
		RememberMe: s.creds.RememberMe,
	})

	if !result.Success {
		logging.Warn().
			Str("component", "session-runner").
			Str("username", s.creds.Username).
			Str("reason", result.Error).
			Msg("Headless login rejected")
		return
	}

	logging.Info().
		Str("component", "session-runner").
		Str("username", s.creds.Username).
		Msg("Headless login succeeded")
}

// String implements fmt.Stringer so suture can name the service in events.
func (s *SessionService) String() string {
	return s.name
}
