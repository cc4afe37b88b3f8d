// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// storeUnderTest runs the TokenStore contract against any implementation.
func storeUnderTest(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	// Empty store reports ErrNoTokens.
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Fatalf("Load() on empty store error = %v, want ErrNoTokens", err)
	}

	// Clear on an empty store is a no-op, not an error.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() on empty store error = %v", err)
	}

	first := &TokenPair{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AccessToken != first.AccessToken || got.RefreshToken != first.RefreshToken {
		t.Errorf("Load() = %+v, want %+v", got, first)
	}
	if !got.ExpiresAt.Equal(first.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, first.ExpiresAt)
	}

	// Save replaces the pair as a whole.
	second := &TokenPair{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() replacement error = %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after replacement error = %v", err)
	}
	if got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
		t.Errorf("Load() after replacement = %+v, want second pair", got)
	}

	// Clear leaves the store indistinguishable from never-authenticated.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Errorf("Load() after Clear() error = %v, want ErrNoTokens", err)
	}
}

func TestMemoryTokenStore(t *testing.T) {
	t.Parallel()
	storeUnderTest(t, NewMemoryTokenStore())
}

func TestMemoryTokenStoreReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryTokenStore()

	pair := &TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}
	if err := store.Save(ctx, pair); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the caller's pair after Save must not affect the store.
	pair.AccessToken = "mutated"
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AccessToken != "a" {
		t.Errorf("stored AccessToken = %q, want %q", got.AccessToken, "a")
	}

	// Mutating a loaded pair must not affect later loads.
	got.RefreshToken = "mutated"
	again, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if again.RefreshToken != "r" {
		t.Errorf("stored RefreshToken = %q, want %q", again.RefreshToken, "r")
	}
}

func TestBadgerTokenStore(t *testing.T) {
	t.Parallel()

	db, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	storeUnderTest(t, NewBadgerTokenStore(db))
}

func TestBadgerTokenStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	pair := &TokenPair{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	db, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	if err := NewBadgerTokenStore(db).Save(ctx, pair); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger() reopen error = %v", err)
	}
	defer func() { _ = db.Close() }()

	got, err := NewBadgerTokenStore(db).Load(ctx)
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	if got.AccessToken != pair.AccessToken || got.RefreshToken != pair.RefreshToken {
		t.Errorf("Load() after reopen = %+v, want %+v", got, pair)
	}
}

func TestInspectToken(t *testing.T) {
	t.Parallel()

	// HS256 token with sub "u1" and a fixed exp claim. Signature is not
	// checked by InspectToken, so a static fixture is fine.
	const token = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJzdWIiOiJ1MSIsImV4cCI6MTc3NTAwMDAwMH0." +
		"invalid-signature"

	meta, err := InspectToken(token)
	if err != nil {
		t.Fatalf("InspectToken() error = %v", err)
	}
	if meta.Subject != "u1" {
		t.Errorf("Subject = %q, want %q", meta.Subject, "u1")
	}
	if want := time.Unix(1775000000, 0); !meta.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", meta.ExpiresAt, want)
	}

	if _, err := InspectToken("not-a-jwt"); err == nil {
		t.Error("InspectToken() on garbage = nil error, want error")
	}
}
