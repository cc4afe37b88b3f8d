// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package session

import (
	"context"
	"sync"
)

// inflight is a one-shot shared future: the first caller of an operation
// owns the execution and resolves the result exactly once; concurrent
// callers attach with wait and observe that same result. The Manager keeps
// one per coalesced operation (Init, RefreshToken) while it is running.
type inflight[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newInflight[T any]() *inflight[T] {
	return &inflight[T]{done: make(chan struct{})}
}

// resolve publishes the result and releases every waiter. Resolving twice
// is a no-op; the first result wins.
func (f *inflight[T]) resolve(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// wait blocks until the shared result is resolved or ctx is done. A waiter
// giving up does not cancel the underlying execution; the owner always
// runs to completion.
func (f *inflight[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
