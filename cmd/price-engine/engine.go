package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/cache"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/config"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/history"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/store"

	// Import sources to register them
	_ "github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources/catalog"
	_ "github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources/web"
)

// engine holds the components shared by every command.
type engine struct {
	service *search.Service
	store   cache.Store
	items   *store.ItemStore
	history history.Recorder
	logger  *logging.Logger
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*engine, error) {
	strategies, err := buildStrategies(cfg, logger)
	if err != nil {
		return nil, err
	}

	e := &engine{logger: logger}
	e.store = buildCacheStore(ctx, cfg.Cache, logger)

	e.history = history.NoopRecorder{}
	if cfg.History.Path != "" {
		rec, err := history.NewSQLiteRecorder(cfg.History.Path, logger)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("open search history: %w", err)
		}
		e.history = rec
	}

	if cfg.Database.DSN != "" {
		items, err := store.Open(ctx, cfg.Database.DSN, logger)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("open inventory database: %w", err)
		}
		e.items = items
	}

	e.service = search.NewService(search.Options{
		Strategies: strategies,
		Cache:      cache.NewPriceCache(e.store, logger),
		TTL:        cfg.Search.CacheTTL.ToDuration(),
		Throttle:   cfg.Search.Throttle.ToDuration(),
		Recorder:   e.history,
		Logger:     logger,
	})
	return e, nil
}

// updater returns the price write-back target, or nil without a database.
func (e *engine) updater() jobs.PriceUpdater {
	if e.items == nil {
		return nil
	}
	return e.items
}

// Close releases every open connection.
func (e *engine) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("Failed to close cache", "error", err)
		}
	}
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			e.logger.Warn("Failed to close search history", "error", err)
		}
	}
	if e.items != nil {
		if err := e.items.Close(); err != nil {
			e.logger.Warn("Failed to close inventory database", "error", err)
		}
	}
}

// buildStrategies creates the enabled sources in configuration order. A
// source that fails to build is skipped.
func buildStrategies(cfg *config.Config, logger *logging.Logger) ([]sources.Strategy, error) {
	var strategies []sources.Strategy
	for _, sourceCfg := range cfg.EnabledSources() {
		logger.Info("Initializing source", "type", sourceCfg.Type, "name", sourceCfg.Name)

		// Add logger to config so sources don't create their own
		if sourceCfg.Config == nil {
			sourceCfg.Config = make(map[string]interface{})
		}
		sourceCfg.Config["logger"] = logger

		st, err := sources.Create(sourceCfg.Type, sourceCfg.Name, sourceCfg.Config)
		if err != nil {
			logger.Warn("Failed to create source", "type", sourceCfg.Type, "name", sourceCfg.Name, "error", err)
			continue
		}
		strategies = append(strategies, st)
	}

	if len(strategies) == 0 {
		return nil, errors.New("no sources available")
	}
	return strategies, nil
}

// buildCacheStore selects the cache backend. An unreachable Redis is kept:
// searches run uncached until it comes back.
func buildCacheStore(ctx context.Context, cfg config.CacheConfig, logger *logging.Logger) cache.Store {
	switch strings.ToLower(cfg.Backend) {
	case config.CacheBackendRedis:
		rs := cache.NewRedisStore(cache.RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout.ToDuration(),
		})
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, searches run uncached until it recovers", "addr", cfg.Redis.Addr, "error", err)
		} else {
			logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
		}
		return rs
	case config.CacheBackendNone:
		return cache.NoopStore{}
	default:
		return cache.NewMemoryStore()
	}
}
