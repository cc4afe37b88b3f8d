// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package clock

import (
	"testing"
	"time"
)

func TestFakeNowAdvance(t *testing.T) {
	fc := NewFake()
	start := fc.Now()

	fc.Advance(5 * time.Second)

	if got := fc.Now().Sub(start); got != 5*time.Second {
		t.Errorf("Now() advanced by %v, want 5s", got)
	}
}

func TestFakeTimerFiresAtDeadline(t *testing.T) {
	fc := NewFake()
	timer := fc.NewTimer(5 * time.Second)

	// Just short of the deadline: nothing delivered.
	fc.Advance(4999 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired before deadline")
	default:
	}

	fc.Advance(1 * time.Millisecond)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire at deadline")
	}
}

func TestFakeTimerStop(t *testing.T) {
	fc := NewFake()
	timer := fc.NewTimer(time.Second)

	if !timer.Stop() {
		t.Error("Stop() = false for pending timer, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}

	fc.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}
}

func TestFakeMultipleTimersFireInOrder(t *testing.T) {
	fc := NewFake()
	second := fc.NewTimer(2 * time.Second)
	first := fc.NewTimer(1 * time.Second)

	fc.Advance(3 * time.Second)

	firstAt := <-first.C()
	secondAt := <-second.C()
	if firstAt.After(secondAt) {
		t.Error("earlier timer delivered a later timestamp")
	}
}

func TestFakeBlockUntil(t *testing.T) {
	fc := NewFake()

	released := make(chan struct{})
	go func() {
		fc.BlockUntil(1)
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("BlockUntil returned before any timer was armed")
	case <-time.After(20 * time.Millisecond):
	}

	fc.NewTimer(time.Second)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not return after timer was armed")
	}
}

func TestFakeAfter(t *testing.T) {
	fc := NewFake()
	ch := fc.After(time.Minute)

	fc.Advance(time.Minute)

	select {
	case <-ch:
	default:
		t.Error("After channel did not deliver at deadline")
	}
}

func TestSystemClockNow(t *testing.T) {
	c := System()
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("System Now() = %v outside [%v, %v]", got, before, after)
	}
}

func TestSystemTimerFires(t *testing.T) {
	c := System()
	timer := c.NewTimer(10 * time.Millisecond)

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("system timer did not fire")
	}
}
