// Package aggregator provides price aggregation strategies.
package aggregator

import (
	"math"
	"sort"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
)

// Thresholds of the outlier filter. Cached averages were computed with
// exactly these values; changing any of them changes stored results.
const (
	// PairSpreadFactor rejects the larger of two prices when it exceeds the
	// smaller by more than this multiple of the smaller.
	PairSpreadFactor = 3.0
	// MaxRatioTrigger enables ratio filtering when max/median exceeds it.
	MaxRatioTrigger = 2.5
	// MedianRatioLimit drops prices above this multiple of the median.
	MedianRatioLimit = 3.0
	// LowerHalfRatioLimit drops prices above this multiple of the lower-half average.
	LowerHalfRatioLimit = 3.5
	// LooseLowerHalfRatioLimit is the retry limit when ratio filtering removes everything.
	LooseLowerHalfRatioLimit = 4.0
	// IQRMultiplier sets the interquartile fence width.
	IQRMultiplier = 1.5
)

// OutlierFilter removes statistically anomalous prices before averaging.
// Remove is deterministic; the logger only records its decisions.
type OutlierFilter struct {
	logger *logging.Logger
}

// NewOutlierFilter creates an outlier filter.
func NewOutlierFilter(logger *logging.Logger) *OutlierFilter {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &OutlierFilter{logger: logger}
}

// Remove returns the prices that survive outlier filtering, sorted ascending.
//
// Two prices are compared directly. From three prices on, a ratio stage runs
// when the maximum is far above the median, followed by an IQR fence. Neither
// stage ever returns an empty list for a non-empty input: the ratio stage
// falls back to a looser limit and then to the lower-half average, the fence
// falls back to the median.
func (f *OutlierFilter) Remove(prices []float64) []float64 {
	n := len(prices)
	switch n {
	case 0:
		return []float64{}
	case 1:
		return []float64{prices[0]}
	}

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	if n == 2 {
		return f.removePair(sorted)
	}

	filtered := f.ratioStage(sorted)
	if len(filtered) <= 2 {
		return filtered
	}
	return f.iqrStage(filtered)
}

func (f *OutlierFilter) removePair(sorted []float64) []float64 {
	a, b := sorted[0], sorted[1]
	if math.Abs(b-a) > PairSpreadFactor*a {
		f.logger.Debug("Rejecting outlier", "stage", "pair", "price", b, "kept", a)
		metrics.RecordOutlierRejection("pair", 1)
		return []float64{a}
	}
	return sorted
}

func (f *OutlierFilter) ratioStage(sorted []float64) []float64 {
	n := len(sorted)
	median := sorted[n/2]
	maxPrice := sorted[n-1]
	lowerHalfAvg := mean(sorted[:(n+1)/2])
	maxRatio := maxPrice / median

	if maxRatio <= MaxRatioTrigger {
		return sorted
	}

	kept := make([]float64, 0, n)
	for _, p := range sorted {
		ratioToMedian := p / median
		ratioToLowerAvg := p / lowerHalfAvg
		if ratioToMedian > MedianRatioLimit || ratioToLowerAvg > LowerHalfRatioLimit {
			f.logger.Debug("Rejecting outlier",
				"stage", "ratio",
				"price", p,
				"median", median,
				"lower_half_avg", lowerHalfAvg,
				"ratio_to_median", ratioToMedian,
				"ratio_to_lower_avg", ratioToLowerAvg)
			continue
		}
		kept = append(kept, p)
	}
	metrics.RecordOutlierRejection("ratio", n-len(kept))

	if len(kept) > 0 {
		return kept
	}

	for _, p := range sorted {
		if p/lowerHalfAvg <= LooseLowerHalfRatioLimit {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		f.logger.Warn("All prices rejected by ratio filter, using loose limit",
			"count", n,
			"kept", len(kept),
			"lower_half_avg", lowerHalfAvg)
		metrics.RecordOutlierFallback("loose_ratio")
		return kept
	}

	f.logger.Warn("All prices rejected by ratio filter, using lower-half average",
		"count", n,
		"lower_half_avg", lowerHalfAvg)
	metrics.RecordOutlierFallback("lower_half_average")
	return []float64{lowerHalfAvg}
}

func (f *OutlierFilter) iqrStage(filtered []float64) []float64 {
	m := len(filtered)
	q1 := filtered[m/4]
	q3 := filtered[3*m/4]
	iqr := q3 - q1
	if iqr == 0 {
		return filtered
	}

	lowerBound := math.Max(0, q1-IQRMultiplier*iqr)
	upperBound := q3 + IQRMultiplier*iqr

	kept := make([]float64, 0, m)
	for _, p := range filtered {
		if p < lowerBound || p > upperBound {
			f.logger.Debug("Rejecting outlier",
				"stage", "iqr",
				"price", p,
				"lower_bound", lowerBound,
				"upper_bound", upperBound)
			continue
		}
		kept = append(kept, p)
	}
	metrics.RecordOutlierRejection("iqr", m-len(kept))

	if len(kept) == 0 {
		median := filtered[m/2]
		f.logger.Warn("All prices outside IQR fence, using median", "count", m, "median", median)
		metrics.RecordOutlierFallback("median")
		return []float64{median}
	}
	return kept
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
