package limiter

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
)

// Throttler runs a function at most once per interval.
//
// A call that lands after the interval has elapsed runs synchronously
// (the leading edge). Calls inside the interval are dropped unless
// trailing is enabled, in which case one timer is armed for the end of
// the window and runs fn with the arguments of the latest call.
//
// With leading disabled the first call of a fresh window seeds the window
// instead of running, so that window can only end in a trailing call.
// fn must not call back into the same Throttler.
//
// Uses a Clock interface so it works with VirtualClock for time-travel testing.
type Throttler[A any] struct {
	fn       func(A)
	interval time.Duration
	leading  bool
	trailing bool
	clock    clock.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	lastTime time.Time
	hasLast  bool
	timer    clock.Timer
	gen      uint64
	args     A // arguments for the trailing call

	execMu sync.Mutex
}

// NewThrottler wraps fn.
//   - interval: minimum spacing between executions
//   - c: clock to use for timers
//   - opts: WithLeading (default true), WithTrailing (default false), WithLogger
func NewThrottler[A any](fn func(A), interval time.Duration, c clock.Clock, opts ...Option) *Throttler[A] {
	o := applyOptions(opts)
	return &Throttler[A]{
		fn:       fn,
		interval: interval,
		leading:  o.leading,
		trailing: o.trailing,
		clock:    c,
		logger:   o.logger,
	}
}

// Call runs fn(args) now if the window allows it, otherwise it may be
// folded into the trailing call. It reports whether fn ran synchronously.
func (t *Throttler[A]) Call(args A) bool {
	t.mu.Lock()

	now := t.clock.Now()
	if !t.hasLast && !t.leading {
		t.lastTime = now
		t.hasLast = true
	}

	var remain time.Duration
	if t.hasLast {
		remain = t.interval - now.Sub(t.lastTime)
	}

	if remain <= 0 {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
			t.gen++
			var zero A
			t.args = zero
		}
		t.lastTime = now
		t.hasLast = true
		t.mu.Unlock()

		t.execMu.Lock()
		defer t.execMu.Unlock()
		t.fn(args)
		return true
	}

	if t.trailing {
		t.args = args
		if t.timer == nil {
			t.gen++
			gen := t.gen
			t.timer = t.clock.AfterFunc(remain, func() {
				t.fire(gen)
			})
		}
	}
	t.mu.Unlock()
	return false
}

// Cancel drops the trailing call, if any, and forgets the current window.
func (t *Throttler[A]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.hasLast = false
	t.lastTime = time.Time{}
	var zero A
	t.args = zero
}

// Scheduled reports whether a trailing call is waiting to run.
func (t *Throttler[A]) Scheduled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *Throttler[A]) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if t.leading {
		t.lastTime = t.clock.Now()
		t.hasLast = true
	} else {
		t.hasLast = false
		t.lastTime = time.Time{}
	}
	args := t.args
	var zero A
	t.args = zero
	t.mu.Unlock()

	t.execMu.Lock()
	defer t.execMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("trailing throttled call panicked", zap.Error(panicError(r)))
		}
	}()
	t.fn(args)
}
