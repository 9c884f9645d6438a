package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  http:
    addr: ":9000"
search:
  throttle: 500ms
cache:
  backend: redis
  redis:
    addr: "${TEST_REDIS_ADDR}"
    db: 2
sources:
  - type: catalog
    name: mercadolivre
    enabled: true
    config:
      timeout: 15000
      item_types: [medicine, input]
  - type: web
    name: consultaremedios
    enabled: false
logging:
  level: debug
  format: text
`

func TestParse_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTP.Addr)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Throttle.ToDuration())
	assert.Equal(t, 24*time.Hour, cfg.Search.CacheTTL.ToDuration())
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 100, cfg.Jobs.QueueSize)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, 15000, cfg.Sources[0].Config["timeout"])
	assert.Equal(t, []interface{}{"medicine", "input"}, cfg.Sources[0].Config["item_types"])
	assert.Len(t, cfg.EnabledSources(), 1)

	require.NoError(t, Validate(cfg))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - type: catalog
    name: vtex
    enabled: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 800*time.Millisecond, cfg.Search.Throttle.ToDuration())
	require.NoError(t, Validate(cfg))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Config {
		cfg, err := Parse([]byte(`
sources:
  - type: catalog
    name: mercadolivre
    enabled: true
`))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources = nil },
			wantErr: ErrNoSourcesConfigured,
		},
		{
			name:    "all disabled",
			mutate:  func(c *Config) { c.Sources[0].Enabled = false },
			wantErr: ErrNoSourcesEnabled,
		},
		{
			name:    "unknown source type",
			mutate:  func(c *Config) { c.Sources[0].Type = "ftp" },
			wantErr: ErrUnknownSourceType,
		},
		{
			name:    "missing source name",
			mutate:  func(c *Config) { c.Sources[0].Name = "" },
			wantErr: ErrSourceNameRequired,
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: ErrDuplicateSourceName,
		},
		{
			name:    "bad sample rate",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: ErrInvalidSampleRate,
		},
		{
			name:    "bad cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: ErrInvalidCacheBackend,
		},
		{
			name: "bad schedule",
			mutate: func(c *Config) {
				c.Backfill.Enabled = true
				c.Backfill.Schedule = "every day"
				c.Database.DSN = "postgres://localhost/care"
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "backfill without database",
			mutate: func(c *Config) {
				c.Backfill.Enabled = true
			},
			wantErr: ErrBackfillNeedsDatabase,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
