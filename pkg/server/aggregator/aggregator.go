// Package aggregator provides price aggregation strategies.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregate flattens per-source price lists into one list. Sources are
// visited in the given order (the order in which they settled); sources
// present in results but missing from order follow in name order. Values
// are neither deduplicated nor reordered, and empty lists contribute nothing.
func Aggregate(results map[string][]float64, order []string) []float64 {
	total := 0
	for _, prices := range results {
		total += len(prices)
	}

	out := make([]float64, 0, total)
	seen := make(map[string]bool, len(results))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, results[name]...)
	}

	rest := make([]string, 0)
	for name := range results {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, results[name]...)
	}

	return out
}

// Average returns the arithmetic mean of prices rounded to cents.
func Average(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w", ErrNoPrices)
	}

	sum := decimal.Zero
	for _, p := range prices {
		if p <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrNonPositivePrice, p)
		}
		sum = sum.Add(decimal.NewFromFloat(p))
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2).Float64()
	return avg, nil
}
