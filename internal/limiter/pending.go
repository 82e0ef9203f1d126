package limiter

import (
	"context"
	"sync"
)

// Pending is the result handle of one debounced call.
//
// It settles once the call actually runs. A call that is superseded by a
// later call, or dropped by Cancel, never settles.
type Pending[R any] struct {
	once sync.Once
	done chan struct{}
	val  R
	err  error
}

func newPending[R any]() *Pending[R] {
	return &Pending[R]{done: make(chan struct{})}
}

func (p *Pending[R]) settle(val R, err error) {
	p.once.Do(func() {
		p.val = val
		p.err = err
		close(p.done)
	})
}

// Done is closed when the call has run.
func (p *Pending[R]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the call has run.
func (p *Pending[R]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the call's outcome, or ErrNotSettled if it has not run.
func (p *Pending[R]) Result() (R, error) {
	if !p.Settled() {
		var zero R
		return zero, ErrNotSettled
	}
	return p.val, p.err
}

// Wait blocks until the call runs or ctx is done.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
