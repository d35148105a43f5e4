// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vlist

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// THROTTLE
// =============================================================================

// Throttle coalesces bursts of events into at most one application per
// window, with a trailing edge.
//
// The first event of a quiet period fires immediately. Events that arrive
// inside the window are not applied; the first of them reserves the next
// slot and the caller schedules a flush for that delay. The flush applies
// whatever value is latest at fire time, so superseded events are dropped
// without any cancellation.
//
// Thread-safe.
type Throttle struct {
	mu      sync.Mutex
	window  time.Duration
	limiter *rate.Limiter
	pending bool
	now     func() time.Time
}

// NewThrottle creates a throttle with the given window. A non-positive
// window disables throttling.
func NewThrottle(window time.Duration) *Throttle {
	t := &Throttle{now: time.Now}
	t.setWindow(window)
	return t
}

func (t *Throttle) setWindow(window time.Duration) {
	t.window = window
	if window <= 0 {
		t.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	t.limiter = rate.NewLimiter(rate.Every(window), 1)
}

// SetWindow replaces the window and forgets any pending flush.
func (t *Throttle) SetWindow(window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setWindow(window)
	t.pending = false
}

// Window returns the configured window.
func (t *Throttle) Window() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Trigger registers an event. fireNow is true when the caller should apply
// the event immediately. Otherwise, if schedule is positive, the caller must
// arrange for Done to be called after that delay and then apply the latest
// value; a zero schedule means a flush is already on its way.
func (t *Throttle) Trigger() (fireNow bool, schedule time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.pending {
		return false, 0
	}
	if t.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return true, 0
	}
	t.pending = true
	delay := r.DelayFrom(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return false, delay
}

// Done clears the pending flag once the trailing flush fires. It reports
// whether a flush was actually pending.
func (t *Throttle) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.pending
	t.pending = false
	return was
}

// Pending reports whether a trailing flush is scheduled.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
