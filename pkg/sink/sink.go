// Package sink exposes the report transports for embedding.
package sink

import (
	"time"

	"go.uber.org/zap"

	internalsink "github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
)

type (
	Kind         = internalsink.Kind
	Sink         = internalsink.Sink
	Config       = internalsink.Config
	HTTPConfig   = internalsink.HTTPConfig
	RedisConfig  = internalsink.RedisConfig
	MemoryConfig = internalsink.MemoryConfig

	HTTP   = internalsink.HTTP
	Redis  = internalsink.Redis
	Memory = internalsink.Memory
	Log    = internalsink.Log
	Multi  = internalsink.Multi

	Upload       = internalsink.Upload
	Beacon       = internalsink.Beacon
	BeaconRecord = internalsink.BeaconRecord
)

const (
	KindHTTP   = internalsink.KindHTTP
	KindRedis  = internalsink.KindRedis
	KindMemory = internalsink.KindMemory
	KindLog    = internalsink.KindLog
)

var (
	ErrStatus     = internalsink.ErrStatus
	ErrNoEndpoint = internalsink.ErrNoEndpoint
)

// Open builds the sinks named in cfg.
func Open(cfg Config, c clock.Clock, logger *zap.Logger) (Sink, error) {
	return internalsink.Open(cfg, c, logger)
}

// NewHTTP creates an HTTP sink.
func NewHTTP(cfg HTTPConfig) *HTTP {
	return internalsink.NewHTTP(cfg)
}

// NewRedis connects a Redis sink.
func NewRedis(cfg *RedisConfig) (*Redis, error) {
	return internalsink.NewRedis(cfg)
}

// NewMemory creates an in-memory sink. A zero ttl never expires reports.
func NewMemory(c clock.Clock, ttl time.Duration) *Memory {
	return internalsink.NewMemory(c, ttl)
}

// NewLog creates a sink that only logs.
func NewLog(logger *zap.Logger) *Log {
	return internalsink.NewLog(logger)
}

// NewMulti fans out to several sinks.
func NewMulti(sinks ...Sink) *Multi {
	return internalsink.NewMulti(sinks...)
}

// MemoryOf returns the first Memory sink in s.
func MemoryOf(s Sink) *Memory {
	return internalsink.MemoryOf(s)
}
