// Package sink provides the transports a Monitor uploads reports and
// beacons through.
package sink

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

var (
	// ErrStatus is returned when a collector answers with a non-2xx status.
	ErrStatus = errors.New("sink: unexpected response status")
	// ErrNoEndpoint is returned when a report or beacon has no destination.
	ErrNoEndpoint = errors.New("sink: endpoint is required")
)

// Kind names a sink implementation.
type Kind string

const (
	KindHTTP   Kind = "http"
	KindRedis  Kind = "redis"
	KindMemory Kind = "memory"
	KindLog    Kind = "log"
)

// Sink uploads reports and sends beacons.
// Implementations must be safe for concurrent use.
type Sink interface {
	telemetry.Uploader
	telemetry.Beaconer
	Close() error
}

// Config selects and configures sinks. Several kinds fan out through Multi.
type Config struct {
	Kinds  []Kind       `json:"kinds" mapstructure:"kinds" yaml:"kinds"`
	HTTP   HTTPConfig   `json:"http" mapstructure:"http" yaml:"http"`
	Redis  RedisConfig  `json:"redis" mapstructure:"redis" yaml:"redis"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory" yaml:"memory"`
}

// Validate checks that every kind is known and its section is usable.
func (c Config) Validate() error {
	if len(c.Kinds) == 0 {
		return fmt.Errorf("at least one sink kind is required")
	}
	for _, k := range c.Kinds {
		switch Kind(strings.ToLower(string(k))) {
		case KindHTTP:
			if c.HTTP.Timeout < 0 {
				return fmt.Errorf("http timeout must be non-negative, got %s", c.HTTP.Timeout)
			}
		case KindRedis:
			if _, err := normalizeRedisConfig(&c.Redis); err != nil {
				return fmt.Errorf("redis sink: %w", err)
			}
		case KindMemory:
			if c.Memory.TTL < 0 {
				return fmt.Errorf("memory ttl must be non-negative, got %s", c.Memory.TTL)
			}
		case KindLog:
		default:
			return fmt.Errorf("unknown sink kind %q (must be http, redis, memory or log)", k)
		}
	}
	return nil
}

// Open builds the sinks named in cfg. A single kind is returned as is;
// several are wrapped in a Multi.
func Open(cfg Config, c clock.Clock, logger *zap.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sinks := make([]Sink, 0, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		s, err := open(Kind(strings.ToLower(string(k))), cfg, c, logger)
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMulti(sinks...), nil
}

func open(k Kind, cfg Config, c clock.Clock, logger *zap.Logger) (Sink, error) {
	switch k {
	case KindHTTP:
		return NewHTTP(cfg.HTTP), nil
	case KindRedis:
		return NewRedis(&cfg.Redis)
	case KindMemory:
		return NewMemory(c, cfg.Memory.TTL), nil
	case KindLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", k)
	}
}
