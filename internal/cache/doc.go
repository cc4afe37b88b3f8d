// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

/*
Package cache provides the TTL metadata cache that shields the upstream
catalog from repeat lookups.

# Overview

The package has three pieces:

  - Cache: a thread-safe in-memory TTL cache. Every Set carries its own
    TTL (the per-class constants TTLTrending, TTLSearch, TTLDetails,
    TTLAvailability match how fast each kind of metadata goes stale) and
    expiry is lazy: Get treats an entry at or past its deadline as absent
    and removes it. Time flows through an injected clock.Clock, so expiry
    behavior is testable without real waiting.

  - DeriveKey: the canonical "<source>_<externalID>_<subtype>" key scheme
    shared by everything that caches catalog metadata.

  - Store: the byte-value cache surface for cache-aside readers, returning
    ErrCacheMiss on absent or expired keys. MemoryStore adapts Cache;
    BadgerStore persists across restarts using badger's native TTL.

# Usage

	c := cache.New(cache.Options{Name: "catalog"})
	key := cache.DeriveKey("tmdb", "603", "movie")
	c.Set(key, details, cache.TTLDetails)
	if v, ok := c.Get(key); ok {
	    return v.(*Details), nil
	}

A miss (absent or expired) is ordinary control flow: fetch from upstream,
Set, and move on.
*/
package cache
