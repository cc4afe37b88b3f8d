// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/watchdeck/internal/logging"
	"github.com/tomtom215/watchdeck/internal/metrics"
)

// BreakerClient wraps a Fetcher with a circuit breaker so a slow or failing
// backend stops receiving catalog traffic instead of stalling every
// dashboard request.
//
// The breaker uses real time for its interval and timeout. That is the
// point: recovery timing is a production concern, not a data-integrity one.
// Tests exercise the wrapped Fetcher directly when they need determinism.
type BreakerClient struct {
	inner Fetcher
	cb    *gobreaker.CircuitBreaker[json.RawMessage]
	name  string
}

// NewBreakerClient wraps inner with circuit breaker protection:
//   - 3 requests admitted in half-open state
//   - 1 minute measurement window
//   - 2 minutes open before probing again
//   - opens at a 60% failure rate over at least 10 requests
//
// ErrNotFound and ErrNoSession do not count as failures: a missing item or
// a logged-out session says nothing about backend health.
func NewBreakerClient(inner Fetcher) *BreakerClient {
	const name = "catalog-backend"

	metrics.SetCircuitBreakerState(name, 0)

	cb := gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening catalog circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoSession)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Catalog circuit state changed")
			metrics.SetCircuitBreakerState(name, breakerStateValue(to))
			metrics.RecordCircuitBreakerTransition(name, fromStr, toStr)
		},
	})

	return &BreakerClient{inner: inner, cb: cb, name: name}
}

// execute runs fn under the breaker and records the outcome.
func (b *BreakerClient) execute(fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(b.name, "success")
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(b.name, "rejected")
		logging.Warn().Err(err).Msg("Catalog request rejected by open circuit")
	default:
		metrics.RecordCircuitBreakerRequest(b.name, "failure")
	}
	return result, err
}

// Trending fetches trending items with circuit breaker protection.
func (b *BreakerClient) Trending(ctx context.Context, subtype string, page int) (json.RawMessage, error) {
	return b.execute(func() (json.RawMessage, error) {
		return b.inner.Trending(ctx, subtype, page)
	})
}

// Search runs a catalog search with circuit breaker protection.
func (b *BreakerClient) Search(ctx context.Context, query, subtype string, page int) (json.RawMessage, error) {
	return b.execute(func() (json.RawMessage, error) {
		return b.inner.Search(ctx, query, subtype, page)
	})
}

// Details fetches item metadata with circuit breaker protection.
func (b *BreakerClient) Details(ctx context.Context, source, externalID, subtype string) (json.RawMessage, error) {
	return b.execute(func() (json.RawMessage, error) {
		return b.inner.Details(ctx, source, externalID, subtype)
	})
}

// Availability fetches item availability with circuit breaker protection.
func (b *BreakerClient) Availability(ctx context.Context, source, externalID string) (json.RawMessage, error) {
	return b.execute(func() (json.RawMessage, error) {
		return b.inner.Availability(ctx, source, externalID)
	})
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
