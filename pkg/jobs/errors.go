// Package jobs runs price searches in the background, off the request path.
package jobs

import "errors"

var (
	// ErrQueueFull indicates the queue cannot take more requests right now.
	ErrQueueFull = errors.New("price job queue is full")
	// ErrQueueClosed indicates the queue has been shut down.
	ErrQueueClosed = errors.New("price job queue is closed")
	// ErrNoPriceFound indicates a search that finished without a price.
	ErrNoPriceFound = errors.New("no price found")
	// ErrInvalidRequest indicates a request that can never succeed.
	ErrInvalidRequest = errors.New("invalid price job request")
)
