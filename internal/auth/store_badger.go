// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// tokenKey is the single well-known storage key for the credential pair.
const tokenKey = "auth:tokens"

// BadgerTokenStore implements TokenStore on BadgerDB for durable storage
// across restarts. The store holds exactly one pair under tokenKey.
type BadgerTokenStore struct {
	db *badger.DB
}

// NewBadgerTokenStore creates a BadgerDB-backed token store.
func NewBadgerTokenStore(db *badger.DB) *BadgerTokenStore {
	return &BadgerTokenStore{db: db}
}

// Save durably stores the pair, replacing any prior pair.
func (s *BadgerTokenStore) Save(_ context.Context, pair *TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal token pair: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(tokenKey), data); err != nil {
			return fmt.Errorf("set token pair: %w", err)
		}
		return nil
	})
}

// Load reads the stored pair. Returns ErrNoTokens when absent.
func (s *BadgerTokenStore) Load(_ context.Context) (*TokenPair, error) {
	var pair TokenPair

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoTokens
		}
		if err != nil {
			return fmt.Errorf("get token pair: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pair)
		})
	})
	if err != nil {
		return nil, err
	}

	return &pair, nil
}

// Clear removes the stored pair. Clearing an empty store is not an error.
func (s *BadgerTokenStore) Clear(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(tokenKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete token pair: %w", err)
		}
		return nil
	})
}

// OpenBadger opens (creating if needed) a BadgerDB at path with logging
// routed away from badger's default logger.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}
