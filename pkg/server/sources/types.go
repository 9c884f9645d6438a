package sources

import (
	"context"
	"fmt"
	"strings"
)

// ItemType discriminates the kind of inventory item being priced.
type ItemType string

const (
	// ItemTypeMedicine is a medicine kept in the facility's cabinets.
	ItemTypeMedicine ItemType = "medicine"
	// ItemTypeInput is a consumable (gloves, diapers, syringes, ...).
	ItemTypeInput ItemType = "input"
)

// ItemTypes lists every valid item type.
var ItemTypes = []ItemType{ItemTypeMedicine, ItemTypeInput}

// ParseItemType validates a raw item type string.
func ParseItemType(s string) (ItemType, error) {
	switch t := ItemType(strings.ToLower(strings.TrimSpace(s))); t {
	case ItemTypeMedicine, ItemTypeInput:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidItemType, s)
	}
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemTypeMedicine || t == ItemTypeInput
}

// Query describes the item whose market price is being discovered.
type Query struct {
	ItemName        string   `json:"item_name"`
	ItemType        ItemType `json:"item_type"`
	Dosage          string   `json:"dosage,omitempty"`
	MeasurementUnit string   `json:"measurement_unit,omitempty"`
}

// NormalizedName is the lower-cased, trimmed item name.
func (q Query) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(q.ItemName))
}

// NormalizedDosage is the lower-cased, trimmed dosage.
func (q Query) NormalizedDosage() string {
	return strings.ToLower(strings.TrimSpace(q.Dosage))
}

// SearchTerms is the free-text term sent to external search endpoints,
// e.g. "dipirona 500mg".
func (q Query) SearchTerms() string {
	parts := []string{strings.TrimSpace(q.ItemName)}
	if d := strings.TrimSpace(q.Dosage); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}

// Strategy fetches raw prices for an item from one external source.
//
// FetchPrices never fails: network errors, timeouts, unexpected status codes
// and parse errors all yield an empty slice. Returned values are positive,
// rounded to cents and already within the strategy's sanity bounds.
type Strategy interface {
	// Name returns the unique, stable name of this source
	Name() string

	// Supports reports whether the source can price items of the given type
	Supports(itemType ItemType) bool

	// FetchPrices returns the prices found for the query, possibly empty
	FetchPrices(ctx context.Context, q Query) []float64
}

// StrategyFactory is a function that creates a new Strategy instance
type StrategyFactory func(config map[string]interface{}) (Strategy, error)
