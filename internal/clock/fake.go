// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Time only moves when Advance
// is called; timers fire synchronously inside Advance once their deadline is
// reached. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	waiters []waiter
}

type waiter struct {
	count int
	ch    chan struct{}
}

// NewFake returns a Fake clock starting at a fixed reference instant.
func NewFake() *Fake {
	return NewFakeAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
}

// NewFakeAt returns a Fake clock starting at t.
func NewFakeAt(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the current simulated time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer arms a timer that fires when Advance moves the simulated time to
// or past now+d. A non-positive d fires on the next Advance call, matching
// the asynchronous delivery of a real zero-duration timer.
func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	ft := &fakeTimer{
		clock:    f,
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.timers = append(f.timers, ft)
	f.notifyWaiters()
	return ft
}

// After arms a timer and returns its delivery channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	return f.NewTimer(d).C()
}

// Advance moves the simulated time forward by d, firing every pending timer
// whose deadline has been reached in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	fired := f.takeDue()
	now := f.now
	f.mu.Unlock()

	for _, ft := range fired {
		ft.ch <- now
	}
}

// BlockUntil blocks until at least n timers are pending. Used by tests to
// wait for a goroutine to arm its timer before advancing the clock.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	if len(f.timers) >= n {
		f.mu.Unlock()
		return
	}
	w := waiter{count: n, ch: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()
	<-w.ch
}

// PendingTimers reports the number of armed, unfired timers.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// takeDue removes and returns all timers due at the current simulated time,
// ordered by deadline. Caller must hold f.mu.
func (f *Fake) takeDue() []*fakeTimer {
	var due, remaining []*fakeTimer
	for _, ft := range f.timers {
		if !ft.deadline.After(f.now) {
			due = append(due, ft)
		} else {
			remaining = append(remaining, ft)
		}
	}
	for i := 1; i < len(due); i++ {
		for j := i; j > 0 && due[j].deadline.Before(due[j-1].deadline); j-- {
			due[j], due[j-1] = due[j-1], due[j]
		}
	}
	f.timers = remaining
	return due
}

// notifyWaiters releases BlockUntil callers whose threshold is met.
// Caller must hold f.mu.
func (f *Fake) notifyWaiters() {
	var remaining []waiter
	for _, w := range f.waiters {
		if len(f.timers) >= w.count {
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
}

// remove unregisters a pending timer. Returns true if it was still pending.
func (f *Fake) remove(ft *fakeTimer) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.timers {
		if t == ft {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	ch       chan time.Time
}

func (ft *fakeTimer) C() <-chan time.Time {
	return ft.ch
}

func (ft *fakeTimer) Stop() bool {
	return ft.clock.remove(ft)
}
