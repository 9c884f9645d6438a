// Package aggregator provides price aggregation strategies.
package aggregator

import "errors"

var (
	// ErrNoPrices indicates that an average was requested over an empty list.
	ErrNoPrices = errors.New("no prices to average")
	// ErrNonPositivePrice indicates a price that no strategy may produce.
	ErrNonPositivePrice = errors.New("price must be positive")
)
