package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// SourceTypes lists the strategy families a source entry may use.
var SourceTypes = []string{"catalog", "web"}

// CronParser parses backfill schedules; the leading seconds field is required.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("%w", ErrNoSourcesConfigured)
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, source := range cfg.Sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
		key := strings.ToLower(source.Type + "." + source.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceName, key)
		}
		seen[key] = true
	}
	if len(cfg.EnabledSources()) == 0 {
		return fmt.Errorf("%w", ErrNoSourcesEnabled)
	}

	if err := validateCacheConfig(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if cfg.Jobs.Workers <= 0 || cfg.Jobs.QueueSize <= 0 {
		return fmt.Errorf("%w", ErrInvalidJobsConfig)
	}

	if cfg.Backfill.Enabled {
		if _, err := CronParser.Parse(cfg.Backfill.Schedule); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, cfg.Backfill.Schedule, err)
		}
		if cfg.Database.DSN == "" {
			return fmt.Errorf("%w", ErrBackfillNeedsDatabase)
		}
	}

	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, cfg.Tracing.SampleRate)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	if cfg.Type == "" {
		return fmt.Errorf("%w", ErrSourceTypeRequired)
	}

	typeValid := false
	for _, t := range SourceTypes {
		if strings.ToLower(cfg.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrUnknownSourceType, cfg.Type, strings.Join(SourceTypes, ", "))
	}

	if cfg.Name == "" {
		return fmt.Errorf("%w", ErrSourceNameRequired)
	}

	return nil
}

func validateCacheConfig(cfg *CacheConfig) error {
	switch strings.ToLower(cfg.Backend) {
	case CacheBackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("%w", ErrRedisAddrRequired)
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("%w: %s (must be 'redis', 'memory' or 'none')", ErrInvalidCacheBackend, cfg.Backend)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
