// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss reports that a key is absent or expired. A miss is control
// flow for cache-aside readers, not a failure condition.
var ErrCacheMiss = errors.New("cache miss")

// Store is the byte-value cache surface the catalog gateway reads through.
// Get on an absent or expired key returns ErrCacheMiss. Implementations
// must be safe for concurrent use.
//
// Two implementations exist: MemoryStore (over Cache, per-process) and
// BadgerStore (persistent, survives restarts).
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// MemoryStore adapts a Cache to the Store interface for byte values.
type MemoryStore struct {
	cache *Cache
}

// NewMemoryStore wraps an existing Cache as a byte-value Store.
func NewMemoryStore(cache *Cache) *MemoryStore {
	return &MemoryStore{cache: cache}
}

// Get returns the bytes stored under key, or ErrCacheMiss.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	data, ok := value.([]byte)
	if !ok {
		// Someone stored a non-byte value under a gateway key; treat it
		// as a miss rather than poisoning the caller.
		return nil, ErrCacheMiss
	}
	return data, nil
}

// Set stores value under key for ttl.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(key string) error {
	s.cache.Delete(key)
	return nil
}

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)
