// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package services

import (
	"context"
	"time"
)

// JanitorCache matches *cache.Cache's RunJanitor method.
type JanitorCache interface {
	RunJanitor(ctx context.Context, interval time.Duration)
}

// CacheJanitorService runs the catalog cache's expired-entry sweep as a
// supervised service. RunJanitor blocks until the context is done, so the
// wrapper only supplies the cadence and a name:
//
//	svc := services.NewCacheJanitorService(metadataCache, cfg.Cache.JanitorInterval)
//	tree.AddSessionService(svc)
type CacheJanitorService struct {
	cache    JanitorCache
	interval time.Duration
	name     string
}

// NewCacheJanitorService creates the janitor wrapper.
func NewCacheJanitorService(cache JanitorCache, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CacheJanitorService{
		cache:    cache,
		interval: interval,
		name:     "cache-janitor",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (c *CacheJanitorService) Serve(ctx context.Context) error {
	c.cache.RunJanitor(ctx, c.interval)
	return ctx.Err()
}

// String implements fmt.Stringer so suture can name the service in events.
func (c *CacheJanitorService) String() string {
	return c.name
}
