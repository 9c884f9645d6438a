// Package search implements the price search orchestrator.
package search

import "errors"

var (
	// ErrEmptyItemName indicates a query without an item name.
	ErrEmptyItemName = errors.New("item name is required")
)
