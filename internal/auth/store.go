// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import (
	"context"
	"sync"
)

// TokenStore persists the credential pair across process restarts.
//
// Save overwrites the prior pair entirely. Load returns ErrNoTokens when no
// pair is stored. Clear leaves storage indistinguishable from a process that
// never authenticated. Implementations must be safe for concurrent use, but
// the session manager is the only writer.
type TokenStore interface {
	Save(ctx context.Context, pair *TokenPair) error
	Load(ctx context.Context) (*TokenPair, error)
	Clear(ctx context.Context) error
}

// MemoryTokenStore is an in-memory TokenStore. Suitable for tests and for
// deployments that accept re-login after every restart.
type MemoryTokenStore struct {
	mu   sync.RWMutex
	pair *TokenPair
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Save stores a copy of the pair.
func (s *MemoryTokenStore) Save(_ context.Context, pair *TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair.Clone()
	return nil
}

// Load returns a copy of the stored pair, or ErrNoTokens.
func (s *MemoryTokenStore) Load(_ context.Context) (*TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return nil, ErrNoTokens
	}
	return s.pair.Clone(), nil
}

// Clear removes the stored pair.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}

// Compile-time interface checks.
var (
	_ TokenStore = (*MemoryTokenStore)(nil)
	_ TokenStore = (*BadgerTokenStore)(nil)
)
