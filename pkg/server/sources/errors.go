// Package sources provides the price source strategy contract and shared plumbing.
package sources

import "errors"

var (
	// ErrInvalidItemType indicates an item type other than medicine or input.
	ErrInvalidItemType = errors.New("invalid item type")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownSource indicates that no factory is registered under the requested key.
	ErrUnknownSource = errors.New("unknown source")
	// ErrBaseURLRequired indicates that a source needs base_url in its config.
	ErrBaseURLRequired = errors.New("base_url is required")
	// ErrInvalidCurrency indicates text that cannot be read as a currency amount.
	ErrInvalidCurrency = errors.New("invalid currency value")
	// ErrInvalidPriceBounds indicates min_price/max_price that do not form a range.
	ErrInvalidPriceBounds = errors.New("invalid price bounds")
)
