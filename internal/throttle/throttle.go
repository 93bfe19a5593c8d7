// Package throttle coalesces bursts of change notifications into a single
// trailing-edge execution of a caller-supplied refresh function.
package throttle

import (
	"sync"
	"time"
)

// Throttle schedules at most one pending execution per delay window. The
// refresh function is read at fire time, not capture time, so owners may
// replace it between submissions without a stale version ever running.
type Throttle struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
	closed  bool
}

// New creates a Throttle firing fn after delay of quiescence.
func New(delay time.Duration, fn func()) *Throttle {
	return &Throttle{
		delay: delay,
		fn:    fn,
	}
}

// SetFunc replaces the refresh function. Any already-scheduled run invokes
// the replacement, never the function it was scheduled with.
func (t *Throttle) SetFunc(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
}

// Submit marks a refresh as pending. Calls arriving while a run is already
// scheduled coalesce into that single pending run. Safe to call redundantly
// many times per millisecond.
func (t *Throttle) Submit() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.pending = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.fire)
	}
}

// Cancel discards a pending scheduled run without executing it. An
// execution that already started is not interrupted.
func (t *Throttle) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Close cancels any pending run and prevents all further scheduling.
func (t *Throttle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) fire() {
	t.mu.Lock()
	t.timer = nil
	if t.closed || !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}
