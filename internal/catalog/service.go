// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchdeck/internal/cache"
	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// cacheName labels catalog entries in cache metrics.
const cacheName = "catalog"

// TTLs carries the per-class cache lifetimes. Zero fields fall back to the
// package defaults.
type TTLs struct {
	Trending     time.Duration
	Search       time.Duration
	Details      time.Duration
	Availability time.Duration
}

// DefaultTTLs returns the stock lifetimes: trending 6h, search 2h, details
// 24h, availability 12h.
func DefaultTTLs() TTLs {
	return TTLs{
		Trending:     cache.TTLTrending,
		Search:       cache.TTLSearch,
		Details:      cache.TTLDetails,
		Availability: cache.TTLAvailability,
	}
}

// Service serves catalog lookups cache-first. A hit returns the stored
// payload without touching the backend; a miss fetches, stores under the
// class TTL, and returns. Fetch failures are returned as-is and never
// cached.
type Service struct {
	fetcher Fetcher
	store   cache.Store
	ttls    TTLs
}

// NewService builds a cached catalog service over fetcher and store.
func NewService(fetcher Fetcher, store cache.Store, ttls TTLs) *Service {
	def := DefaultTTLs()
	if ttls.Trending <= 0 {
		ttls.Trending = def.Trending
	}
	if ttls.Search <= 0 {
		ttls.Search = def.Search
	}
	if ttls.Details <= 0 {
		ttls.Details = def.Details
	}
	if ttls.Availability <= 0 {
		ttls.Availability = def.Availability
	}
	return &Service{fetcher: fetcher, store: store, ttls: ttls}
}

// Trending returns a trending page, cached for the trending TTL.
func (s *Service) Trending(ctx context.Context, subtype string, page int) (json.RawMessage, error) {
	subtype = normalizeSubtype(subtype)
	page = normalizePage(page)
	key := cache.DeriveKey("tmdb", fmt.Sprintf("trending-page%d", page), subtype)
	return s.cached(key, s.ttls.Trending, func() (json.RawMessage, error) {
		return s.fetcher.Trending(ctx, subtype, page)
	})
}

// Search returns search results, cached for the search TTL. The query is
// escaped into the cache key, so distinct queries never collide.
func (s *Service) Search(ctx context.Context, query, subtype string, page int) (json.RawMessage, error) {
	subtype = normalizeSubtype(subtype)
	page = normalizePage(page)
	key := cache.DeriveKey("search", url.QueryEscape(query)+"-p"+strconv.Itoa(page), subtype)
	return s.cached(key, s.ttls.Search, func() (json.RawMessage, error) {
		return s.fetcher.Search(ctx, query, subtype, page)
	})
}

// Details returns one item's metadata, cached for the details TTL.
func (s *Service) Details(ctx context.Context, source, externalID, subtype string) (json.RawMessage, error) {
	subtype = normalizeSubtype(subtype)
	key := cache.DeriveKey(source, externalID, subtype)
	return s.cached(key, s.ttls.Details, func() (json.RawMessage, error) {
		return s.fetcher.Details(ctx, source, externalID, subtype)
	})
}

// Availability returns one item's streaming availability, cached for the
// availability TTL.
func (s *Service) Availability(ctx context.Context, source, externalID string) (json.RawMessage, error) {
	key := cache.DeriveKey(source, externalID, "availability")
	return s.cached(key, s.ttls.Availability, func() (json.RawMessage, error) {
		return s.fetcher.Availability(ctx, source, externalID)
	})
}

// cached implements the cache-aside read path.
func (s *Service) cached(key string, ttl time.Duration, fill func() (json.RawMessage, error)) (json.RawMessage, error) {
	data, err := s.store.Get(key)
	if err == nil {
		metrics.RecordCacheHit(cacheName)
		return json.RawMessage(data), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logging.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed")
	}
	metrics.RecordCacheMiss(cacheName)

	payload, err := fill()
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(key, payload, ttl); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Catalog cache write failed")
	}
	return payload, nil
}

func normalizeSubtype(subtype string) string {
	if subtype == "" {
		return "movie"
	}
	return subtype
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
