package config

import internalconfig "github.com/SmitUplenchwar2687/Beacon/internal/config"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = internalconfig.EnvPrefix

// Config is the top-level configuration for a Beacon collector.
type Config = internalconfig.Config

// ServerConfig holds HTTP collector settings.
type ServerConfig = internalconfig.ServerConfig

// MonitorConfig is applied to every session monitor.
type MonitorConfig = internalconfig.MonitorConfig

// RecorderConfig controls event recording.
type RecorderConfig = internalconfig.RecorderConfig

// LoggingConfig selects the log level and encoding.
type LoggingConfig = internalconfig.LoggingConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// Load reads a YAML or JSON config file over the defaults and applies
// environment overrides.
func Load(path string) (Config, error) {
	return internalconfig.Load(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
