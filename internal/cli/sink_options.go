package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
)

// sinkOptions mirrors sink.Config as command flags. Flags left unset fall
// back to the config file.
type sinkOptions struct {
	kinds             []string
	httpTimeout       time.Duration
	memoryTTL         time.Duration
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
	redisKeyPrefix    string
	redisMaxReports   int
}

func defaultSinkOptions() sinkOptions {
	return sinkOptions{
		kinds:            []string{string(sink.KindMemory)},
		httpTimeout:      10 * time.Second,
		redisHost:        "localhost",
		redisPort:        6379,
		redisPoolSize:    20,
		redisMaxRetries:  3,
		redisDialTimeout: 5 * time.Second,
		redisKeyPrefix:   "beacon:",
		redisMaxReports:  1000,
	}
}

func (o *sinkOptions) addFlags(cmd *cobra.Command) {
	d := defaultSinkOptions()
	cmd.Flags().StringSliceVar(&o.kinds, "sink", d.kinds, "report sinks (http, redis, memory, log)")
	cmd.Flags().DurationVar(&o.httpTimeout, "http-timeout", d.httpTimeout, "request timeout for the http sink")
	cmd.Flags().DurationVar(&o.memoryTTL, "memory-ttl", 0, "how long the memory sink keeps reports (0 = forever)")
	cmd.Flags().StringVar(&o.redisHost, "redis-host", d.redisHost, "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", d.redisPort, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	cmd.Flags().IntVar(&o.redisPoolSize, "redis-pool-size", d.redisPoolSize, "redis connection pool size")
	cmd.Flags().IntVar(&o.redisMaxRetries, "redis-max-retries", d.redisMaxRetries, "redis max retries")
	cmd.Flags().DurationVar(&o.redisDialTimeout, "redis-dial-timeout", d.redisDialTimeout, "redis dial timeout")
	cmd.Flags().StringVar(&o.redisKeyPrefix, "redis-key-prefix", d.redisKeyPrefix, "prefix for redis report and beacon lists")
	cmd.Flags().IntVar(&o.redisMaxReports, "redis-max-reports", d.redisMaxReports, "reports kept per endpoint list")
}

// applyConfigIfUnset copies cfg into flags the user did not set. Zero
// config values keep the flag defaults.
func (o *sinkOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *sink.Config) {
	if cfg == nil {
		return
	}

	changed := cmd.Flags().Changed
	if !changed("sink") {
		o.kinds = nil
		for _, k := range cfg.Kinds {
			o.kinds = append(o.kinds, string(k))
		}
	}
	if !changed("http-timeout") && cfg.HTTP.Timeout > 0 {
		o.httpTimeout = cfg.HTTP.Timeout
	}
	if !changed("memory-ttl") {
		o.memoryTTL = cfg.Memory.TTL
	}
	if !changed("redis-host") && cfg.Redis.Host != "" {
		o.redisHost = cfg.Redis.Host
	}
	if !changed("redis-port") && cfg.Redis.Port > 0 {
		o.redisPort = cfg.Redis.Port
	}
	if !changed("redis-password") {
		o.redisPassword = cfg.Redis.Password
	}
	if !changed("redis-db") {
		o.redisDB = cfg.Redis.DB
	}
	if !changed("redis-cluster") {
		o.redisCluster = cfg.Redis.Cluster
	}
	if !changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Redis.ClusterNodes
	}
	if !changed("redis-pool-size") && cfg.Redis.PoolSize > 0 {
		o.redisPoolSize = cfg.Redis.PoolSize
	}
	if !changed("redis-max-retries") && cfg.Redis.MaxRetries > 0 {
		o.redisMaxRetries = cfg.Redis.MaxRetries
	}
	if !changed("redis-dial-timeout") && cfg.Redis.DialTimeout > 0 {
		o.redisDialTimeout = cfg.Redis.DialTimeout
	}
	if !changed("redis-key-prefix") && cfg.Redis.KeyPrefix != "" {
		o.redisKeyPrefix = cfg.Redis.KeyPrefix
	}
	if !changed("redis-max-reports") && cfg.Redis.MaxReports > 0 {
		o.redisMaxReports = cfg.Redis.MaxReports
	}
}

func (o *sinkOptions) normalize() error {
	if o.redisCluster || !o.uses(sink.KindRedis) {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *sinkOptions) uses(k sink.Kind) bool {
	for _, name := range o.kinds {
		if sink.Kind(strings.ToLower(name)) == k {
			return true
		}
	}
	return false
}

func (o *sinkOptions) toConfig() sink.Config {
	kinds := make([]sink.Kind, 0, len(o.kinds))
	for _, k := range o.kinds {
		kinds = append(kinds, sink.Kind(strings.ToLower(strings.TrimSpace(k))))
	}
	return sink.Config{
		Kinds:  kinds,
		HTTP:   sink.HTTPConfig{Timeout: o.httpTimeout},
		Memory: sink.MemoryConfig{TTL: o.memoryTTL},
		Redis: sink.RedisConfig{
			Host:         o.redisHost,
			Port:         o.redisPort,
			Password:     o.redisPassword,
			DB:           o.redisDB,
			Cluster:      o.redisCluster,
			ClusterNodes: append([]string(nil), o.redisClusterNodes...),
			PoolSize:     o.redisPoolSize,
			MaxRetries:   o.redisMaxRetries,
			DialTimeout:  o.redisDialTimeout,
			KeyPrefix:    o.redisKeyPrefix,
			MaxReports:   o.redisMaxReports,
		},
	}
}

// resolve merges cfg with the flags that were set and returns the result.
func (o *sinkOptions) resolve(cmd *cobra.Command, cfg sink.Config) (sink.Config, error) {
	headers := cfg.HTTP.Headers
	o.applyConfigIfUnset(cmd, &cfg)
	if err := o.normalize(); err != nil {
		return sink.Config{}, err
	}
	out := o.toConfig()
	out.HTTP.Headers = headers
	return out, nil
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}
