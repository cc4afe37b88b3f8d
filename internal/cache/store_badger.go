// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces cache entries inside a BadgerDB that may also hold
// other data (the token store shares the database in the default layout).
const keyPrefix = "cache:"

// BadgerStore is a persistent Store on BadgerDB using badger's native TTL:
// entries survive restarts and the storage layer expires them itself, so no
// janitor is needed.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a BadgerDB-backed cache store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the bytes stored under key. Keys badger has expired report
// ErrCacheMiss exactly like absent ones.
func (s *BadgerStore) Get(key string) ([]byte, error) {
	var out []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache entry %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy cache entry %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Set stores value under key with badger-enforced ttl.
func (s *BadgerStore) Set(key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), value).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set cache entry %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes the entry for key. Removing an absent key is a no-op.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyPrefix + key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete cache entry %s: %w", key, err)
		}
		return nil
	})
}
