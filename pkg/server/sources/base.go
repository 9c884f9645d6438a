package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/version"
)

const (
	// DefaultTimeout bounds a single request to an external source.
	DefaultTimeout = 15 * time.Second
	// DefaultAcceptLanguage asks sources for Brazilian Portuguese pages and prices in BRL.
	DefaultAcceptLanguage = "pt-BR,pt;q=0.9,en;q=0.5"
	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 5 << 20
)

var (
	// DefaultMinPrice is the lowest plausible unit price in BRL.
	DefaultMinPrice = decimal.NewFromFloat(0.5)
	// DefaultMaxPrice is the highest plausible unit price in BRL.
	DefaultMaxPrice = decimal.NewFromInt(50000)
)

// BaseConfig holds the settings shared by every strategy.
type BaseConfig struct {
	Name           string
	ItemTypes      []ItemType
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Client         *http.Client
	Logger         *logging.Logger
}

// BaseStrategy provides common functionality for all price strategies
type BaseStrategy struct {
	name           string
	itemTypes      map[ItemType]bool
	minPrice       decimal.Decimal
	maxPrice       decimal.Decimal
	userAgent      string
	acceptLanguage string
	client         *http.Client
	logger         *logging.Logger
}

// NewBaseStrategy creates a base strategy, filling zero values with defaults.
func NewBaseStrategy(cfg BaseConfig) *BaseStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; " + version.AgentString() + ")"
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = DefaultAcceptLanguage
	}
	if cfg.MinPrice.IsZero() {
		cfg.MinPrice = DefaultMinPrice
	}
	if cfg.MaxPrice.IsZero() {
		cfg.MaxPrice = DefaultMaxPrice
	}

	types := make(map[ItemType]bool, len(cfg.ItemTypes))
	for _, t := range cfg.ItemTypes {
		types[t] = true
	}

	return &BaseStrategy{
		name:           cfg.Name,
		itemTypes:      types,
		minPrice:       cfg.MinPrice,
		maxPrice:       cfg.MaxPrice,
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		client:         cfg.Client,
		logger:         cfg.Logger.With("source", cfg.Name),
	}
}

// Name returns the source name
func (b *BaseStrategy) Name() string {
	return b.name
}

// Supports reports whether the source prices the given item type
func (b *BaseStrategy) Supports(itemType ItemType) bool {
	return b.itemTypes[itemType]
}

// Logger returns the logger
func (b *BaseStrategy) Logger() *logging.Logger {
	return b.logger
}

// Bounds returns the sanity range applied to extracted prices.
func (b *BaseStrategy) Bounds() (decimal.Decimal, decimal.Decimal) {
	return b.minPrice, b.maxPrice
}

// Get performs a GET with the source's headers and returns the body of a 2xx response.
func (b *BaseStrategy) Get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept-Language", b.acceptLanguage)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w", ErrRateLimitExceeded)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// Sanitize drops non-positive and out-of-bounds values and rounds the rest to cents.
func (b *BaseStrategy) Sanitize(values []decimal.Decimal) []float64 {
	prices := make([]float64, 0, len(values))
	for _, v := range values {
		if !v.IsPositive() || v.LessThan(b.minPrice) || v.GreaterThan(b.maxPrice) {
			continue
		}
		f, _ := v.Round(2).Float64()
		prices = append(prices, f)
	}
	return prices
}

// FetchFunc is the fallible part of a strategy: one round-trip plus extraction.
type FetchFunc func(ctx context.Context, q Query) ([]decimal.Decimal, error)

// Run executes fetch and turns every failure into an empty result. It logs
// the start and end of the call and records per-source metrics.
func (b *BaseStrategy) Run(ctx context.Context, q Query, fetch FetchFunc) (prices []float64) {
	start := time.Now()
	b.logger.Debug("Fetching prices", "item", q.ItemName, "dosage", q.Dosage, "item_type", q.ItemType)

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Price source panicked", "item", q.ItemName, "panic", fmt.Sprint(r))
			metrics.RecordSourceFetch(b.name, "error", 0, time.Since(start))
			prices = []float64{}
		}
	}()

	raw, err := fetch(ctx, q)
	if err != nil {
		b.logger.Warn("Price source failed", "item", q.ItemName, "error", err, "duration", time.Since(start))
		metrics.RecordSourceFetch(b.name, "error", 0, time.Since(start))
		return []float64{}
	}

	prices = b.Sanitize(raw)
	outcome := "ok"
	if len(prices) == 0 {
		outcome = "empty"
	}
	metrics.RecordSourceFetch(b.name, outcome, len(prices), time.Since(start))

	b.logger.Debug("Fetched prices",
		"item", q.ItemName,
		"raw_count", len(raw),
		"count", len(prices),
		"duration", time.Since(start))

	return prices
}
