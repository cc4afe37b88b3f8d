// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

// Package clock abstracts time for components that schedule work: the TTL
// cache reads the current time through it, and the realtime channel arms its
// reconnect timer through it. Production code uses System; tests inject Fake
// and advance simulated time deterministically.
package clock

import "time"

// Clock provides the current time and timer construction.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTimer returns a timer that fires once after d.
	NewTimer(d time.Duration) Timer

	// After returns a channel that delivers the time after d.
	// Equivalent to NewTimer(d).C() when the timer is never stopped.
	After(d time.Duration) <-chan time.Time
}

// Timer is a single-shot timer armed through a Clock.
type Timer interface {
	// C returns the channel on which the firing time is delivered.
	C() <-chan time.Time

	// Stop prevents the timer from firing. Returns true if the timer was
	// still pending, false if it already fired or was stopped.
	Stop() bool
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type systemTimer struct {
	t *time.Timer
}

func (st *systemTimer) C() <-chan time.Time {
	return st.t.C
}

func (st *systemTimer) Stop() bool {
	return st.t.Stop()
}
