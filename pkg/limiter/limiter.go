package limiter

import (
	"time"

	internallimiter "github.com/SmitUplenchwar2687/Beacon/internal/limiter"
	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
)

// Kind identifies a call-rate limiting policy.
type Kind = internallimiter.Kind

const (
	KindDebounce = internallimiter.KindDebounce
	KindThrottle = internallimiter.KindThrottle
)

var (
	ErrPanicked   = internallimiter.ErrPanicked
	ErrNotSettled = internallimiter.ErrNotSettled
)

// Config describes a limiter declaratively.
type Config = internallimiter.Config

// Option configures a Debouncer or Throttler.
type Option = internallimiter.Option

// Debouncer delays calls until they stop arriving for a while.
type Debouncer[A, R any] = internallimiter.Debouncer[A, R]

// Pending is the eventual result of a debounced call.
type Pending[R any] = internallimiter.Pending[R]

// Throttler runs a function at most once per interval.
type Throttler[A any] = internallimiter.Throttler[A]

// NewDebouncer wraps fn so it runs once calls stop for delay.
func NewDebouncer[A, R any](fn func(A) (R, error), delay time.Duration, c clock.Clock, opts ...Option) *Debouncer[A, R] {
	return internallimiter.NewDebouncer(fn, delay, c, opts...)
}

// NewThrottler wraps fn so it runs at most once per interval.
func NewThrottler[A any](fn func(A), interval time.Duration, c clock.Clock, opts ...Option) *Throttler[A] {
	return internallimiter.NewThrottler(fn, interval, c, opts...)
}

// WithResultCallback reports every debounced outcome to fn.
func WithResultCallback[R any](fn func(R, error)) Option {
	return internallimiter.WithResultCallback(fn)
}

var (
	WithImmediate = internallimiter.WithImmediate
	WithLeading   = internallimiter.WithLeading
	WithTrailing  = internallimiter.WithTrailing
	WithLogger    = internallimiter.WithLogger
)
