// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestInflightDeliversToAllWaiters(t *testing.T) {
	f := newInflight[int]()

	const waiters = 8
	results := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.wait(context.Background())
			if err != nil {
				t.Errorf("wait returned error: %v", err)
				return
			}
			results <- v
		}()
	}

	f.resolve(42, nil)
	wg.Wait()
	close(results)

	count := 0
	for v := range results {
		count++
		if v != 42 {
			t.Errorf("waiter got %d, want 42", v)
		}
	}
	if count != waiters {
		t.Errorf("got %d results, want %d", count, waiters)
	}
}

func TestInflightResolveIsOneShot(t *testing.T) {
	f := newInflight[string]()
	f.resolve("first", nil)
	f.resolve("second", errors.New("ignored"))

	v, err := f.wait(context.Background())
	if err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if v != "first" {
		t.Errorf("wait = %q, want %q", v, "first")
	}
}

func TestInflightResolveWithError(t *testing.T) {
	f := newInflight[int]()
	want := errors.New("backend unreachable")
	f.resolve(0, want)

	if _, err := f.wait(context.Background()); !errors.Is(err, want) {
		t.Fatalf("wait error = %v, want %v", err, want)
	}
}

func TestInflightWaitHonorsContext(t *testing.T) {
	f := newInflight[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("wait error = %v, want context.Canceled", err)
	}

	// An abandoned wait must not poison the flight for later waiters.
	f.resolve(7, nil)
	v, err := f.wait(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("wait after resolve = (%d, %v), want (7, nil)", v, err)
	}
}
