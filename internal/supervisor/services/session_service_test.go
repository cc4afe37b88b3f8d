// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/watchdeck/internal/auth"
	"github.com/tomtom215/watchdeck/internal/config"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/session"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fakeSessionManager is a test double for the SessionManager interface.
type fakeSessionManager struct {
	mu            sync.Mutex
	initSnap      session.Snapshot
	initErr       error
	loginResult   session.LoginResult
	initCalls     int
	loginCalls    int
	lastCreds     *auth.Credentials
	maintainCalls atomic.Int32
}

func (f *fakeSessionManager) Init(ctx context.Context) (session.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initSnap, f.initErr
}

func (f *fakeSessionManager) Login(ctx context.Context, creds *auth.Credentials) session.LoginResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	f.lastCreds = creds
	return f.loginResult
}

func (f *fakeSessionManager) Maintain(ctx context.Context) {
	f.maintainCalls.Add(1)
}

func (f *fakeSessionManager) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *fakeSessionManager) LastCreds() *auth.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCreds
}

func bootstrapCreds() config.CredentialsConfig {
	return config.CredentialsConfig{
		Username:   "alice",
		Password:   "hunter2",
		RememberMe: true,
	}
}

// runUntilCanceled drives Serve in a goroutine and returns a stop function
// that cancels it and waits for the returned error.
func runUntilCanceled(t *testing.T, svc *SessionService) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
			return nil
		}
	}
}

func TestSessionService_Interface(t *testing.T) {
	var _ suture.Service = (*SessionService)(nil)
}

func TestNewSessionService(t *testing.T) {
	mgr := &fakeSessionManager{}
	svc := NewSessionService(mgr, config.CredentialsConfig{}, 5*time.Second)

	if svc.interval != 5*time.Second {
		t.Errorf("expected interval 5s, got %v", svc.interval)
	}
	if svc.name != "session-runner" {
		t.Errorf("expected name 'session-runner', got %q", svc.name)
	}

	svc = NewSessionService(mgr, config.CredentialsConfig{}, 0)
	if svc.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", svc.interval)
	}
}

func TestSessionService_Serve(t *testing.T) {
	t.Run("returns error when restore fails", func(t *testing.T) {
		storeErr := errors.New("badger: store unavailable")
		mgr := &fakeSessionManager{
			initSnap: session.Snapshot{State: session.StateError},
			initErr:  storeErr,
		}
		svc := NewSessionService(mgr, config.CredentialsConfig{}, time.Second)

		err := svc.Serve(context.Background())
		if !errors.Is(err, storeErr) {
			t.Errorf("expected restore error, got %v", err)
		}
	})

	t.Run("performs headless login when unauthenticated", func(t *testing.T) {
		mgr := &fakeSessionManager{
			initSnap:    session.Snapshot{State: session.StateUnauthenticated},
			loginResult: session.LoginResult{Success: true},
		}
		svc := NewSessionService(mgr, bootstrapCreds(), time.Second)

		stop := runUntilCanceled(t, svc)
		time.Sleep(50 * time.Millisecond)
		if err := stop(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		if mgr.LoginCalls() != 1 {
			t.Fatalf("expected 1 login call, got %d", mgr.LoginCalls())
		}
		creds := mgr.LastCreds()
		if creds.Username != "alice" || creds.Password != "hunter2" || !creds.RememberMe {
			t.Errorf("configured credentials were not passed through, got %+v", creds)
		}
	})

	t.Run("login rejection keeps the runner alive", func(t *testing.T) {
		mgr := &fakeSessionManager{
			initSnap:    session.Snapshot{State: session.StateUnauthenticated},
			loginResult: session.LoginResult{Success: false, Error: "Invalid credentials"},
		}
		svc := NewSessionService(mgr, bootstrapCreds(), time.Second)

		stop := runUntilCanceled(t, svc)
		time.Sleep(50 * time.Millisecond)
		if err := stop(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled after rejected login, got %v", err)
		}
	})

	t.Run("skips login when already authenticated", func(t *testing.T) {
		mgr := &fakeSessionManager{
			initSnap: session.Snapshot{State: session.StateAuthenticated},
		}
		svc := NewSessionService(mgr, bootstrapCreds(), time.Second)

		stop := runUntilCanceled(t, svc)
		time.Sleep(50 * time.Millisecond)
		_ = stop()

		if mgr.LoginCalls() != 0 {
			t.Errorf("expected no login calls, got %d", mgr.LoginCalls())
		}
	})

	t.Run("skips login without configured credentials", func(t *testing.T) {
		mgr := &fakeSessionManager{
			initSnap: session.Snapshot{State: session.StateUnauthenticated},
		}
		svc := NewSessionService(mgr, config.CredentialsConfig{}, time.Second)

		stop := runUntilCanceled(t, svc)
		time.Sleep(50 * time.Millisecond)
		_ = stop()

		if mgr.LoginCalls() != 0 {
			t.Errorf("expected no login calls, got %d", mgr.LoginCalls())
		}
	})

	t.Run("ticks maintain at the configured interval", func(t *testing.T) {
		mgr := &fakeSessionManager{
			initSnap: session.Snapshot{State: session.StateAuthenticated},
		}
		svc := NewSessionService(mgr, config.CredentialsConfig{}, 10*time.Millisecond)

		stop := runUntilCanceled(t, svc)
		time.Sleep(100 * time.Millisecond)
		_ = stop()

		if calls := mgr.maintainCalls.Load(); calls < 3 {
			t.Errorf("expected at least 3 maintain ticks, got %d", calls)
		}
	})
}

func TestSessionService_String(t *testing.T) {
	svc := NewSessionService(&fakeSessionManager{}, config.CredentialsConfig{}, time.Second)

	if svc.String() != "session-runner" {
		t.Errorf("expected 'session-runner', got %q", svc.String())
	}
}
