package limiter

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
)

// Debouncer delays a function until calls stop arriving for a quiet period.
//
// Every Call replaces the armed call, so only the last call of a burst
// runs, delay after it arrived. With WithImmediate the first call of a
// busy window runs synchronously instead; the immediate latch is released
// only when a deferred call completes or on Cancel.
//
// At most one timer is armed per Debouncer, and executions never overlap.
// fn must not call back into the same Debouncer.
//
// Uses a Clock interface so it works with VirtualClock for time-travel testing.
type Debouncer[A, R any] struct {
	fn        func(A) (R, error)
	delay     time.Duration
	immediate bool
	clock     clock.Clock
	logger    *zap.Logger
	onResult  func(R, error)

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64 // bumped on every Call and Cancel; stale timers compare against it
	invoked bool   // immediate latch

	execMu sync.Mutex
}

// NewDebouncer wraps fn.
//   - delay: quiet period before a deferred call runs
//   - c: clock to use for timers
//   - opts: WithImmediate, WithResultCallback, WithLogger
func NewDebouncer[A, R any](fn func(A) (R, error), delay time.Duration, c clock.Clock, opts ...Option) *Debouncer[A, R] {
	o := applyOptions(opts)
	d := &Debouncer[A, R]{
		fn:        fn,
		delay:     delay,
		immediate: o.immediate,
		clock:     c,
		logger:    o.logger,
	}
	if o.onResult != nil {
		cb, ok := o.onResult.(func(R, error))
		if !ok {
			d.logger.Warn("result callback ignored, type does not match the debounced result")
		}
		d.onResult = cb
	}
	return d
}

// Call schedules fn(args), superseding any call still waiting.
// The returned handle settles when this particular call runs.
func (d *Debouncer[A, R]) Call(args A) *Pending[R] {
	p := newPending[R]()

	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++

	if d.immediate && !d.invoked {
		d.invoked = true
		d.mu.Unlock()
		d.execute(args, p)
		return p
	}

	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(gen, args, p)
	})
	d.mu.Unlock()
	return p
}

// Cancel drops the waiting call, if any, and releases the immediate latch.
// The dropped call's handle never settles.
func (d *Debouncer[A, R]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.invoked = false
}

// Scheduled reports whether a deferred call is waiting to run.
func (d *Debouncer[A, R]) Scheduled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[A, R]) fire(gen uint64, args A, p *Pending[R]) {
	d.mu.Lock()
	if gen != d.gen {
		// Superseded or canceled after the timer already started firing.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.execute(args, p)

	d.mu.Lock()
	d.invoked = false
	d.mu.Unlock()
}

func (d *Debouncer[A, R]) execute(args A, p *Pending[R]) {
	d.execMu.Lock()
	defer d.execMu.Unlock()

	val, err := d.run(args)
	p.settle(val, err)
	if d.onResult != nil {
		d.onResult(val, err)
	}
}

// run calls fn, turning a panic into an ErrPanicked error.
func (d *Debouncer[A, R]) run(args A) (val R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			d.logger.Warn("debounced call panicked", zap.Error(err))
			var zero R
			val = zero
		}
	}()

	val, err = d.fn(args)
	if err != nil {
		d.logger.Debug("debounced call failed", zap.Error(err))
	}
	return val, err
}
