// Package aggregator provides price aggregation strategies.
package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
)

func TestOutlierFilter_Remove(t *testing.T) {
	filter := NewOutlierFilter(logging.NewNoopLogger())

	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{name: "empty", prices: []float64{}, expected: []float64{}},
		{name: "nil", prices: nil, expected: []float64{}},
		{name: "single", prices: []float64{7.25}, expected: []float64{7.25}},
		{name: "pair at boundary kept", prices: []float64{40, 10}, expected: []float64{10, 40}},
		{name: "pair above boundary", prices: []float64{10, 41}, expected: []float64{10}},
		{name: "pair close together", prices: []float64{5.8, 5.5}, expected: []float64{5.5, 5.8}},
		{name: "tight cluster", prices: []float64{52, 48, 50}, expected: []float64{48, 50, 52}},
		{name: "single high outlier", prices: []float64{10, 11, 12, 500}, expected: []float64{10, 11, 12}},
		{name: "lower half average rule", prices: []float64{28, 2, 10, 4}, expected: []float64{2, 4, 10}},
		{name: "max ratio at trigger skips ratio stage", prices: []float64{10, 11, 12, 13, 30}, expected: []float64{10, 11, 12, 13}},
		{name: "zero iqr", prices: []float64{5, 5, 20, 5, 5}, expected: []float64{5, 5, 5, 5}},
		{name: "ratio stage leaves two", prices: []float64{95, 3, 3.1}, expected: []float64{3, 3.1}},
		{name: "end to end fixture", prices: []float64{5.5, 5.8, 5.6}, expected: []float64{5.5, 5.6, 5.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filter.Remove(tt.prices))
		})
	}
}

func TestOutlierFilter_Idempotent(t *testing.T) {
	filter := NewOutlierFilter(nil)

	fixtures := [][]float64{
		{},
		{9.99},
		{10, 40},
		{10, 41},
		{48, 50, 52},
		{10, 11, 12, 500},
		{5.5, 5.8, 5.6},
	}

	for _, prices := range fixtures {
		once := filter.Remove(prices)
		assert.Equal(t, once, filter.Remove(once), "prices %v", prices)
	}
}

func TestOutlierFilter_DoesNotMutateInput(t *testing.T) {
	filter := NewOutlierFilter(nil)
	prices := []float64{500, 12, 10, 11}

	_ = filter.Remove(prices)

	assert.Equal(t, []float64{500, 12, 10, 11}, prices)
}

func TestOutlierFilter_Averages(t *testing.T) {
	filter := NewOutlierFilter(nil)

	tests := []struct {
		name     string
		prices   []float64
		expected float64
	}{
		{name: "cluster", prices: []float64{48, 50, 52}, expected: 50.00},
		{name: "outlier removed", prices: []float64{10, 11, 12, 500}, expected: 11.00},
		{name: "dipirona", prices: []float64{5.5, 5.8, 5.6}, expected: 5.63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, err := Average(filter.Remove(tt.prices))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, avg)
		})
	}
}
