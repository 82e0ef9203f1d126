package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisMaxReports  = 1000

	defaultRedisKeyPrefix = "beacon:"
)

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Host         string        `json:"host" mapstructure:"host" yaml:"host"`
	Port         int           `json:"port" mapstructure:"port" yaml:"port"`
	Password     string        `json:"password,omitempty" mapstructure:"password" yaml:"password,omitempty"`
	DB           int           `json:"db" mapstructure:"db" yaml:"db"`
	Cluster      bool          `json:"cluster" mapstructure:"cluster" yaml:"cluster"`
	ClusterNodes []string      `json:"cluster_nodes,omitempty" mapstructure:"cluster_nodes" yaml:"cluster_nodes,omitempty"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size" yaml:"pool_size"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" yaml:"dial_timeout"`
	KeyPrefix    string        `json:"key_prefix" mapstructure:"key_prefix" yaml:"key_prefix"`
	MaxReports   int           `json:"max_reports" mapstructure:"max_reports" yaml:"max_reports"` // per endpoint list cap
}

// Redis pushes reports onto a capped list per endpoint. The newest report
// is at the head of the list.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	maxReports int64

	closeOnce sync.Once
	closeErr  error
}

var _ Sink = (*Redis)(nil)

// BeaconRecord is a beacon stored by the Redis sink.
type BeaconRecord struct {
	Method string     `json:"method"`
	Data   url.Values `json:"data"`
}

// NewRedis connects to Redis and pings it with retries.
func NewRedis(cfg *RedisConfig) (*Redis, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Redis{
		client:     newRedisClient(conf),
		prefix:     conf.KeyPrefix,
		maxReports: int64(conf.MaxReports),
	}

	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

// Upload pushes the report onto the endpoint's list and trims it.
func (s *Redis) Upload(ctx context.Context, endpoint string, r telemetry.Report) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return s.push(ctx, s.reportKey(endpoint), b)
}

// Send pushes the beacon onto the endpoint's beacon list.
func (s *Redis) Send(ctx context.Context, endpoint, method string, data url.Values) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}
	b, err := json.Marshal(BeaconRecord{Method: method, Data: data})
	if err != nil {
		return fmt.Errorf("encoding beacon: %w", err)
	}
	return s.push(ctx, s.beaconKey(endpoint), b)
}

// Reports returns up to n stored reports for endpoint, newest first.
// A non-positive n returns all of them.
func (s *Redis) Reports(ctx context.Context, endpoint string, n int) ([]telemetry.Report, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	raw, err := s.client.LRange(ctx, s.reportKey(endpoint), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}

	reports := make([]telemetry.Report, 0, len(raw))
	for i, item := range raw {
		var r telemetry.Report
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decoding report %d: %w", i, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Beacons returns all stored beacons for endpoint, newest first.
func (s *Redis) Beacons(ctx context.Context, endpoint string) ([]BeaconRecord, error) {
	raw, err := s.client.LRange(ctx, s.beaconKey(endpoint), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading beacons: %w", err)
	}

	out := make([]BeaconRecord, 0, len(raw))
	for i, item := range raw {
		var b BeaconRecord
		if err := json.Unmarshal([]byte(item), &b); err != nil {
			return nil, fmt.Errorf("decoding beacon %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Close releases Redis resources. It is idempotent.
func (s *Redis) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *Redis) push(ctx context.Context, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, s.maxReports-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing to %s: %w", key, err)
	}
	return nil
}

func (s *Redis) reportKey(endpoint string) string { return s.prefix + "reports:" + endpoint }
func (s *Redis) beaconKey(endpoint string) string { return s.prefix + "beacons:" + endpoint }

func (s *Redis) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.MaxReports <= 0 {
		conf.MaxReports = defaultRedisMaxReports
	}
	if conf.KeyPrefix == "" {
		conf.KeyPrefix = defaultRedisKeyPrefix
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
