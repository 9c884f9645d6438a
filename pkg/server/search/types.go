// Package search implements the price search orchestrator.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

const (
	// DefaultTTL is how long a computed price stays cached.
	DefaultTTL = 24 * time.Hour
	// DefaultThrottle is the pacing delay after each strategy call settles.
	DefaultThrottle = 800 * time.Millisecond
	// KeyPrefix prefixes every price cache key.
	KeyPrefix = "price"
)

// Result is the outcome of a price search. It is never mutated once built;
// invalidation removes it and the next search computes a new one.
type Result struct {
	AveragePrice *float64  `json:"average_price"`
	Source       string    `json:"source"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Computation describes a search that went to the strategies rather than
// the cache.
type Computation struct {
	Query         sources.Query
	Result        Result
	Sources       map[string][]float64
	RawCount      int
	FilteredCount int
	Duration      time.Duration
}

// Recorder receives every computed result, e.g. to keep a search history.
type Recorder interface {
	RecordSearch(ctx context.Context, c Computation) error
}

// keyEscaper escapes the segment separator inside name and dosage so that
// distinct queries never share a key.
var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// CacheKey derives the cache key of a query from its item type, normalized
// name and optional dosage: "price:<type>:<name>[:<dosage>]". A ':' or '\'
// inside the name or dosage is backslash-escaped.
func CacheKey(q sources.Query) string {
	parts := []string{KeyPrefix, string(q.ItemType), keyEscaper.Replace(q.NormalizedName())}
	if d := q.NormalizedDosage(); d != "" {
		parts = append(parts, keyEscaper.Replace(d))
	}
	return strings.Join(parts, ":")
}

// ItemTypePattern matches every cache key of one item type.
func ItemTypePattern(itemType sources.ItemType) string {
	return KeyPrefix + ":" + string(itemType) + ":*"
}
