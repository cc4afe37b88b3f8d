// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/watchdeck/internal/clock"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// Entry is a cached value together with its caching and expiry instants.
type Entry struct {
	Data      interface{}
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Stats tracks cache performance counters.
type Stats struct {
	mu        sync.RWMutex
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
	LastPurge time.Time
}

// Options configures a Cache.
type Options struct {
	// Name labels the cache in metrics and logs.
	Name string

	// Capacity bounds the number of entries; zero means unbounded. When
	// full, inserting a new key first purges expired entries, then evicts
	// the entry closest to expiry.
	Capacity int

	// Clock supplies the current time. Nil falls back to the system clock.
	Clock clock.Clock
}

// Cache is a thread-safe in-memory TTL cache. Every Set carries its own
// TTL (there is no cache-wide default) and expiry is lazy: an entry past
// its deadline is treated as absent on Get and removed then. PurgeExpired
// (or RunJanitor) additionally sweeps entries nobody reads again.
//
// Time is read through the injected Clock, so expiry is testable without
// real waiting.
type Cache struct {
	name     string
	capacity int
	clk      clock.Clock

	mu      sync.RWMutex
	entries map[string]Entry

	stats Stats
}

// New creates an empty cache.
func New(opts Options) *Cache {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	return &Cache{
		name:     name,
		capacity: opts.Capacity,
		clk:      clk,
		entries:  make(map[string]Entry),
	}
}

// Get retrieves the value stored under key. Returns (nil, false) when the
// key is absent or its entry has reached its expiry instant; the expired
// entry is removed on the way out. A miss is control flow, not a failure.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	now := c.clk.Now()
	if !now.Before(entry.ExpiresAt) {
		// Re-check under the write lock: a concurrent Set may have
		// replaced the entry since the read above.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !now.Before(cur.ExpiresAt) {
			delete(c.entries, key)
			c.updateSizeLocked()
		}
		c.mu.Unlock()
		c.recordMiss()
		c.recordEviction()
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores value under key for ttl, replacing any prior entry for that
// key whatever its remaining lifetime. Last writer wins.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	now := c.clk.Now()

	c.mu.Lock()
	if c.capacity > 0 {
		if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
			c.makeRoomLocked(now)
		}
	}
	delete(c.entries, key)
	c.entries[key] = Entry{
		Data:      value,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.updateSizeLocked()
	c.mu.Unlock()
}

// Delete removes the entry for key. Removing an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.updateSizeLocked()
		c.mu.Unlock()
		c.recordEviction()
		return
	}
	c.mu.Unlock()
}

// Clear removes every entry in one operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.updateSizeLocked()
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evicted
	c.stats.mu.Unlock()
	metrics.AddCacheEvictions(c.name, evicted)
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PurgeExpired removes every entry whose expiry instant has been reached
// and returns how many were removed. Correctness never requires calling
// it; Get already treats expired entries as absent.
func (c *Cache) PurgeExpired() int {
	now := c.clk.Now()

	c.mu.Lock()
	purged := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			purged++
		}
	}
	c.updateSizeLocked()
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += int64(purged)
	c.stats.LastPurge = now
	c.stats.mu.Unlock()
	metrics.AddCacheEvictions(c.name, int64(purged))

	return purged
}

// RunJanitor purges expired entries every interval until ctx is done.
// Suitable as a supervised service body.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	for {
		timer := c.clk.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
			c.PurgeExpired()
		}
	}
}

// GetStats returns a snapshot of the performance counters.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:      c.stats.Hits,
		Misses:    c.stats.Misses,
		Evictions: c.stats.Evictions,
		TotalKeys: c.stats.TotalKeys,
		LastPurge: c.stats.LastPurge,
	}
}

// HitRate returns the hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// makeRoomLocked frees at least one slot for a new key. Expired entries go
// first; if none are expired the entry closest to expiry is evicted.
// Caller must hold c.mu.
func (c *Cache) makeRoomLocked(now time.Time) {
	evicted := int64(0)
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}

	if evicted == 0 && len(c.entries) >= c.capacity {
		var victim string
		var victimExpiry time.Time
		found := false
		for key, entry := range c.entries {
			if !found || entry.ExpiresAt.Before(victimExpiry) {
				victim = key
				victimExpiry = entry.ExpiresAt
				found = true
			}
		}
		if found {
			delete(c.entries, victim)
			evicted++
		}
	}

	c.stats.mu.Lock()
	c.stats.Evictions += evicted
	c.stats.mu.Unlock()
	metrics.AddCacheEvictions(c.name, evicted)
}

// updateSizeLocked refreshes the size counter and gauge. Caller must hold c.mu.
func (c *Cache) updateSizeLocked() {
	n := int64(len(c.entries))
	c.stats.mu.Lock()
	c.stats.TotalKeys = n
	c.stats.mu.Unlock()
	metrics.SetCacheSize(c.name, n)
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.RecordCacheHit(c.name)
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.RecordCacheMiss(c.name)
}

func (c *Cache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.mu.Unlock()
	metrics.AddCacheEvictions(c.name, 1)
}
