package config

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/Beacon/internal/limiter"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// EnvPrefix prefixes environment overrides, e.g. BEACON_SERVER_ADDR.
const EnvPrefix = "BEACON"

// Config is the top-level configuration for a Beacon collector.
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server" yaml:"server"`
	Monitor  MonitorConfig  `json:"monitor" mapstructure:"monitor" yaml:"monitor"`
	Sink     sink.Config    `json:"sink" mapstructure:"sink" yaml:"sink"`
	Recorder RecorderConfig `json:"recorder" mapstructure:"recorder" yaml:"recorder"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP collector settings.
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Per-client admission: RateLimit requests per second with Burst.
	// A zero RateLimit disables admission control.
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `json:"burst" mapstructure:"burst" yaml:"burst"`

	// Snapshot throttles report pushes to WebSocket clients per session.
	Snapshot limiter.Config `json:"snapshot" mapstructure:"snapshot" yaml:"snapshot"`

	// IdleTimeout evicts sessions and client buckets unused this long. 0 disables.
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// MonitorConfig is applied to every session monitor.
type MonitorConfig struct {
	UploadURL  string                 `json:"upload_url" mapstructure:"upload_url" yaml:"upload_url"`
	AutoUpload time.Duration          `json:"auto_upload" mapstructure:"auto_upload" yaml:"auto_upload"` // 0 disables
	Beacon     telemetry.BeaconConfig `json:"beacon" mapstructure:"beacon" yaml:"beacon"`
}

// RecorderConfig controls event recording.
type RecorderConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Path    string `json:"path" mapstructure:"path" yaml:"path"` // NDJSON stream, empty keeps records in memory only
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level"`
	Format string `json:"format" mapstructure:"format" yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
			Burst:           40,
			Snapshot: limiter.Config{
				Kind:     limiter.KindThrottle,
				Wait:     time.Second,
				Leading:  true,
				Trailing: true,
			},
			IdleTimeout: 30 * time.Minute,
		},
		Monitor: MonitorConfig{
			Beacon: telemetry.BeaconConfig{
				Method:  http.MethodPost,
				Timeout: telemetry.DefaultSlowResourceThreshold,
			},
		},
		Sink: sink.Config{
			Kinds: []sink.Kind{sink.KindMemory},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst <= 0 {
		return fmt.Errorf("server.burst must be positive when rate_limit is set, got %d", c.Server.Burst)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must not be negative, got %s", c.Server.IdleTimeout)
	}
	if c.Server.Snapshot.Kind != limiter.KindThrottle {
		return fmt.Errorf("server.snapshot.kind must be throttle, got %q", c.Server.Snapshot.Kind)
	}
	if err := c.Server.Snapshot.Validate(); err != nil {
		return fmt.Errorf("server.snapshot: %w", err)
	}

	if c.Monitor.AutoUpload < 0 {
		return fmt.Errorf("monitor.auto_upload must not be negative, got %s", c.Monitor.AutoUpload)
	}
	switch strings.ToUpper(c.Monitor.Beacon.Method) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("monitor.beacon.method must be GET or POST, got %q", c.Monitor.Beacon.Method)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging.format %q, must be json or console", c.Logging.Format)
	}
	return nil
}

// Load reads the YAML (or JSON) config file at path over the defaults and
// applies BEACON_* environment overrides. An empty path loads defaults and
// environment only. Fields not specified keep their default values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Default())
	if err != nil {
		return Config{}, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Default(), fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// WriteExample writes an example YAML config file to the given path.
func WriteExample(path string) error {
	body, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding example config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# Beacon collector configuration.\n")
	buf.WriteString("# Every key can be overridden with a BEACON_ environment variable,\n")
	buf.WriteString("# e.g. BEACON_SERVER_ADDR=:9090.\n")
	buf.Write(body)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
