// Package config provides configuration loading and validation for the price engine.
package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrNoSourcesEnabled indicates that every configured source is disabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrUnknownSourceType indicates that the source type is unknown.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrDuplicateSourceName indicates that two sources share a name.
	ErrDuplicateSourceName = errors.New("duplicate source name")
	// ErrInvalidCacheBackend indicates that the cache backend is unknown.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrRedisAddrRequired indicates that the redis backend has no address.
	ErrRedisAddrRequired = errors.New("redis address is required")
	// ErrInvalidJobsConfig indicates a non-positive worker or queue size.
	ErrInvalidJobsConfig = errors.New("jobs workers and queue_size must be > 0")
	// ErrInvalidSchedule indicates that the backfill cron schedule cannot be parsed.
	ErrInvalidSchedule = errors.New("invalid backfill schedule")
	// ErrBackfillNeedsDatabase indicates that backfill is enabled without a database.
	ErrBackfillNeedsDatabase = errors.New("backfill requires database.dsn")
	// ErrInvalidSampleRate indicates a trace sample rate outside [0, 1].
	ErrInvalidSampleRate = errors.New("tracing sample_rate must be between 0 and 1")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
