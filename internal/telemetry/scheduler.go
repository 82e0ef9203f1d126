package telemetry

import (
	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
)

// Scheduler runs work when convenient. It is a hint: implementations
// promise neither timing nor ordering relative to other work.
type Scheduler interface {
	Schedule(fn func())
}

// IdleScheduler hands work to the host's idle callback.
type IdleScheduler struct {
	host IdleRequester
}

func NewIdleScheduler(host IdleRequester) *IdleScheduler {
	return &IdleScheduler{host: host}
}

func (s *IdleScheduler) Schedule(fn func()) {
	s.host.RequestIdleCallback(fn)
}

// DeferScheduler runs work on a zero-delay timer.
type DeferScheduler struct {
	clock clock.Clock
}

func NewDeferScheduler(c clock.Clock) *DeferScheduler {
	return &DeferScheduler{clock: c}
}

func (s *DeferScheduler) Schedule(fn func()) {
	s.clock.AfterFunc(0, fn)
}

// NewScheduler uses the host's idle callback when it has one and falls
// back to a zero-delay timer otherwise.
func NewScheduler(host any, c clock.Clock) Scheduler {
	if ir, ok := host.(IdleRequester); ok {
		return NewIdleScheduler(ir)
	}
	return NewDeferScheduler(c)
}
