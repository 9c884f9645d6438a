// Package search implements the price search orchestrator.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/cache"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/aggregator"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/tracing"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Strategies []sources.Strategy
	Cache      *cache.PriceCache
	TTL        time.Duration
	Throttle   time.Duration
	Recorder   Recorder
	Logger     *logging.Logger
	Now        func() time.Time
}

// Service answers price searches: cache first, then a concurrent fan-out to
// every strategy that supports the item type.
//
// Concurrent identical searches on a cold cache each run their own fan-out;
// the last cache write wins.
type Service struct {
	strategies []sources.Strategy
	cache      *cache.PriceCache
	filter     *aggregator.OutlierFilter
	ttl        time.Duration
	throttle   time.Duration
	recorder   Recorder
	logger     *logging.Logger
	now        func() time.Time
}

// NewService creates a search service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewPriceCache(cache.NoopStore{}, logger)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		strategies: opts.Strategies,
		cache:      opts.Cache,
		filter:     aggregator.NewOutlierFilter(logger.With("component", "outlier_filter")),
		ttl:        opts.TTL,
		throttle:   opts.Throttle,
		recorder:   opts.Recorder,
		logger:     logger.With("component", "search"),
		now:        opts.Now,
	}
}

// Strategies returns the names of the configured strategies.
func (s *Service) Strategies() []string {
	names := make([]string, 0, len(s.strategies))
	for _, st := range s.strategies {
		names = append(names, st.Name())
	}
	return names
}

// SearchPrice returns the average market price for q, or nil when no price
// could be discovered. Only malformed queries produce an error.
func (s *Service) SearchPrice(ctx context.Context, q sources.Query) (*Result, error) {
	ctx, span := tracing.StartSearchSpan(ctx, string(q.ItemType), q.ItemName, q.Dosage)
	defer span.End()

	if err := validate(q); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	itemType := string(q.ItemType)
	key := CacheKey(q)
	done := func(outcome string) {
		tracing.SetOutcome(span, outcome)
		metrics.RecordSearch(itemType, outcome, time.Since(start))
	}

	var cached Result
	if s.cache.Load(ctx, key, &cached) && cached.AveragePrice != nil {
		s.logger.Info("Price served from cache",
			"key", key,
			"average_price", *cached.AveragePrice,
			"source", cached.Source)
		done("cache_hit")
		return &cached, nil
	}

	selected := s.supporting(q.ItemType)
	if len(selected) == 0 {
		s.logger.Warn("No price strategy supports item type", "item", q.ItemName, "item_type", itemType)
		done("no_strategy")
		return nil, nil
	}

	results, order := s.fanOut(ctx, q, selected)
	if len(results) == 0 {
		s.logger.Info("No prices found", "item", q.ItemName, "dosage", q.Dosage, "strategies", len(selected))
		done("no_prices")
		return nil, nil
	}

	raw := aggregator.Aggregate(results, order)
	filtered := s.filter.Remove(raw)
	if len(filtered) == 0 {
		done("filtered_out")
		return nil, nil
	}

	avg, err := aggregator.Average(filtered)
	if err != nil {
		s.logger.Warn("Failed to average prices", "item", q.ItemName, "error", err)
		done("filtered_out")
		return nil, nil
	}

	result := &Result{
		AveragePrice: &avg,
		Source:       strings.Join(contributors(selected, results), ","),
		LastUpdated:  s.now(),
	}

	s.cache.Save(ctx, key, result, s.ttl)

	s.logger.Info("Price computed",
		"item", q.ItemName,
		"dosage", q.Dosage,
		"average_price", avg,
		"source", result.Source,
		"raw_count", len(raw),
		"filtered_count", len(filtered),
		"duration", time.Since(start))
	done("computed")

	s.record(ctx, Computation{
		Query:         q,
		Result:        *result,
		Sources:       results,
		RawCount:      len(raw),
		FilteredCount: len(filtered),
		Duration:      time.Since(start),
	})

	return result, nil
}

// InvalidatePriceCache removes the cached result of one item, so the next
// search recomputes it. Used after a manual price edit.
func (s *Service) InvalidatePriceCache(ctx context.Context, itemName string, itemType sources.ItemType, dosage string) error {
	q := sources.Query{ItemName: itemName, ItemType: itemType, Dosage: dosage}
	if err := validate(q); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, CacheKey(q))
	return nil
}

// InvalidateItemType removes every cached result of one item type.
func (s *Service) InvalidateItemType(ctx context.Context, itemType sources.ItemType) error {
	if !itemType.Valid() {
		return fmt.Errorf("%w: %q", sources.ErrInvalidItemType, itemType)
	}
	s.cache.InvalidatePattern(ctx, ItemTypePattern(itemType))
	return nil
}

func (s *Service) supporting(itemType sources.ItemType) []sources.Strategy {
	selected := make([]sources.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if st.Supports(itemType) {
			selected = append(selected, st)
		}
	}
	return selected
}

// fanOut calls every strategy concurrently and waits for all of them. Each
// call is followed by the pacing delay before it counts as done. Only
// strategies that returned prices appear in the result; order lists them in
// the order they settled.
func (s *Service) fanOut(ctx context.Context, q sources.Query, strategies []sources.Strategy) (map[string][]float64, []string) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string][]float64, len(strategies))
		order   = make([]string, 0, len(strategies))
	)

	for _, st := range strategies {
		wg.Add(1)
		go func(st sources.Strategy) {
			defer wg.Done()

			prices := s.call(ctx, st, q)
			if len(prices) > 0 {
				mu.Lock()
				results[st.Name()] = prices
				order = append(order, st.Name())
				mu.Unlock()
			}

			s.pace(ctx)
		}(st)
	}

	wg.Wait()
	return results, order
}

// call isolates a strategy: a panic counts as an empty result.
func (s *Service) call(ctx context.Context, st sources.Strategy, q sources.Query) (prices []float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Strategy panicked", "source", st.Name(), "item", q.ItemName, "panic", fmt.Sprint(r))
			prices = nil
		}
	}()

	ctx, span := tracing.StartStrategySpan(ctx, st.Name())
	defer func() {
		span.SetAttributes(tracing.AttrPriceCount.Int(len(prices)))
		span.End()
	}()

	start := time.Now()
	s.logger.Debug("Strategy started", "source", st.Name(), "item", q.ItemName)
	prices = st.FetchPrices(ctx, q)
	s.logger.Debug("Strategy finished",
		"source", st.Name(),
		"item", q.ItemName,
		"count", len(prices),
		"duration", time.Since(start))
	return prices
}

func (s *Service) pace(ctx context.Context) {
	timer := time.NewTimer(s.throttle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Service) record(ctx context.Context, c Computation) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordSearch(ctx, c); err != nil {
		s.logger.Warn("Failed to record search", "item", c.Query.ItemName, "error", err)
	}
}

// contributors lists the strategies that returned prices, in configuration
// order, so the same inputs always produce the same Source string.
func contributors(strategies []sources.Strategy, results map[string][]float64) []string {
	names := make([]string, 0, len(results))
	for _, st := range strategies {
		if _, ok := results[st.Name()]; ok {
			names = append(names, st.Name())
		}
	}
	return names
}

func validate(q sources.Query) error {
	if strings.TrimSpace(q.ItemName) == "" {
		return fmt.Errorf("%w", ErrEmptyItemName)
	}
	if !q.ItemType.Valid() {
		return fmt.Errorf("%w: %q", sources.ErrInvalidItemType, q.ItemType)
	}
	return nil
}
