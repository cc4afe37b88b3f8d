// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTokens implements TokenSource for client tests. RefreshToken swaps the
// token to "fresh" when allowed.
type fakeTokens struct {
	mu        sync.Mutex
	token     string
	ok        bool
	refreshOK bool
	refreshes int
}

func (f *fakeTokens) AccessToken(context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.ok
}

func (f *fakeTokens) RefreshToken(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if !f.refreshOK {
		return false
	}
	f.token = "fresh"
	return true
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, Tokens: tokens, Timeout: 5 * time.Second})
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestTrendingRequestShape(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/catalog/trending" {
			t.Errorf("path = %q, want /api/catalog/trending", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != "tv" || q.Get("page") != "2" {
			t.Errorf("query = %v, want type=tv page=2", q)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q, want Bearer tok-1", got)
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}), tokens)

	data, err := c.Trending(context.Background(), "tv", 2)
	if err != nil {
		t.Fatalf("Trending returned error: %v", err)
	}
	if string(data) != `{"results":[]}` {
		t.Errorf("payload = %s", data)
	}
	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", hits.Load())
	}
}

func TestDetailsRequestShape(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/catalog/details/tmdb/tt0111161" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "movie" {
			t.Errorf("type = %q, want movie", got)
		}
		_, _ = w.Write([]byte(`{"title":"The Shawshank Redemption"}`))
	}), tokens)

	if _, err := c.Details(context.Background(), "tmdb", "tt0111161", "movie"); err != nil {
		t.Fatalf("Details returned error: %v", err)
	}
}

func TestClientRefreshesOnceOn401(t *testing.T) {
	tokens := &fakeTokens{token: "stale", ok: true, refreshOK: true}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}), tokens)

	data, err := c.Availability(context.Background(), "tmdb", "42")
	if err != nil {
		t.Fatalf("Availability returned error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("payload = %s", data)
	}
	if tokens.refreshCount() != 1 {
		t.Errorf("refreshes = %d, want 1", tokens.refreshCount())
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2", hits.Load())
	}
}

func TestClientNoSessionWithoutToken(t *testing.T) {
	tokens := &fakeTokens{ok: false}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}), tokens)

	if _, err := c.Trending(context.Background(), "movie", 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
	if hits.Load() != 0 {
		t.Errorf("backend hit without a session: %d requests", hits.Load())
	}
}

func TestClientAbandonsAfterSecondRejection(t *testing.T) {
	tokens := &fakeTokens{token: "stale", ok: true, refreshOK: true}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), tokens)

	if _, err := c.Trending(context.Background(), "movie", 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
	if tokens.refreshCount() != 1 {
		t.Errorf("refreshes = %d, want exactly 1", tokens.refreshCount())
	}
	if hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2", hits.Load())
	}
}

func TestClientRetriesOn429(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results":[1]}`))
	}), tokens)

	data, err := c.Search(context.Background(), "dune", "movie", 1)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if string(data) != `{"results":[1]}` {
		t.Errorf("payload = %s", data)
	}
	if hits.Load() != 3 {
		t.Errorf("backend hits = %d, want 3", hits.Load())
	}
}

func TestClientGivesUpWhenRateLimitPersists(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), tokens)

	if _, err := c.Trending(context.Background(), "movie", 1); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	// Initial attempt plus five retries.
	if hits.Load() != 6 {
		t.Errorf("backend hits = %d, want 6", hits.Load())
	}
}

func TestClientNotFound(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), tokens)

	if _, err := c.Details(context.Background(), "tmdb", "0", "movie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClientUpstreamFailure(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1", ok: true}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend melted", http.StatusServiceUnavailable)
	}), tokens)

	_, err := c.Trending(context.Background(), "movie", 1)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
