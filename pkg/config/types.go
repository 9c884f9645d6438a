package config

import "time"

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Sources  []SourceConfig `yaml:"sources"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Backfill BackfillConfig `yaml:"backfill"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	HTTP         HTTPConfig `yaml:"http"`
	ReadTimeout  Duration   `yaml:"read_timeout"`
	WriteTimeout Duration   `yaml:"write_timeout"`
}

// HTTPConfig configures the HTTP listener
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SearchConfig tunes the price search orchestrator
type SearchConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"`
	Throttle Duration `yaml:"throttle"`
}

// CacheConfig selects and configures the cache backend
type CacheConfig struct {
	Backend string      `yaml:"backend"` // redis, memory or none
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr        string   `yaml:"addr"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	DialTimeout Duration `yaml:"dial_timeout"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// DatabaseConfig points at the inventory database. Empty DSN disables price write-back.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// HistoryConfig configures the local search history. Empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// JobsConfig configures the background price lookup queue
type JobsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// BackfillConfig configures the scheduled lookup of items without a price
type BackfillConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	BatchSize int    `yaml:"batch_size"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry trace export
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // OTLP/HTTP host:port
	SampleRate  float64 `yaml:"sample_rate"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
