package limiter

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind identifies a call-rate limiting policy.
type Kind string

const (
	KindDebounce Kind = "debounce"
	KindThrottle Kind = "throttle"
)

var (
	// ErrPanicked wraps a panic recovered from a wrapped function.
	ErrPanicked = errors.New("limiter: wrapped function panicked")
	// ErrNotSettled is returned by Pending.Result before the call has run.
	ErrNotSettled = errors.New("limiter: call has not settled")
)

// Config describes a limiter declaratively, e.g. from a config file.
type Config struct {
	Kind      Kind          `json:"kind" mapstructure:"kind" yaml:"kind"`
	Wait      time.Duration `json:"wait" mapstructure:"wait" yaml:"wait"`                // Debounce delay or throttle interval
	Immediate bool          `json:"immediate" mapstructure:"immediate" yaml:"immediate"` // Debounce only
	Leading   bool          `json:"leading" mapstructure:"leading" yaml:"leading"`       // Throttle only
	Trailing  bool          `json:"trailing" mapstructure:"trailing" yaml:"trailing"`    // Throttle only
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.Wait < 0 {
		return fmt.Errorf("wait must not be negative, got %s", c.Wait)
	}
	switch c.Kind {
	case KindDebounce:
	case KindThrottle:
		if !c.Leading && !c.Trailing {
			return fmt.Errorf("throttle needs leading or trailing enabled")
		}
	default:
		return fmt.Errorf("unknown limiter kind %q, must be one of: debounce, throttle", c.Kind)
	}
	return nil
}

// Options returns the constructor options matching the config.
func (c Config) Options() []Option {
	opts := []Option{WithLeading(c.Leading), WithTrailing(c.Trailing)}
	if c.Immediate {
		opts = append(opts, WithImmediate())
	}
	return opts
}

// Option configures a Debouncer or Throttler.
type Option func(*options)

type options struct {
	immediate bool
	leading   bool
	trailing  bool
	logger    *zap.Logger
	onResult  any // func(R, error) for the Debouncer's R
}

func defaultOptions() options {
	return options{
		leading:  true,
		trailing: false,
		logger:   zap.NewNop(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// WithImmediate makes the first call of a busy window run synchronously.
// Debounce only.
func WithImmediate() Option {
	return func(o *options) { o.immediate = true }
}

// WithLeading controls execution at the start of a throttle window.
func WithLeading(v bool) Option {
	return func(o *options) { o.leading = v }
}

// WithTrailing controls execution at the end of a throttle window.
func WithTrailing(v bool) Option {
	return func(o *options) { o.trailing = v }
}

// WithResultCallback calls fn with the outcome of every debounced
// execution, including rejected ones. Debounce only; the callback's R must
// match the Debouncer's result type or it is ignored.
func WithResultCallback[R any](fn func(R, error)) Option {
	return func(o *options) { o.onResult = fn }
}

// WithLogger sets the logger used for recovered panics and failed calls.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicked, r)
}
