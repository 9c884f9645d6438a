// Package jobs runs price searches in the background, off the request path.
//
// Item create and update flows submit a Request and return immediately.
// Workers run the search, store a discovered price on the item, and report
// every outcome on Results and every failure on Errors, so a failed lookup
// never affects the request that triggered it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/tracing"
)

const (
	// DefaultWorkers is the number of concurrent searches.
	DefaultWorkers = 2
	// DefaultQueueSize bounds pending requests.
	DefaultQueueSize = 100
	// DefaultJobTimeout bounds one search plus the price update.
	DefaultJobTimeout = 2 * time.Minute
)

// Searcher finds the price of an item.
type Searcher interface {
	SearchPrice(ctx context.Context, q sources.Query) (*search.Result, error)
}

// PriceUpdater stores a discovered price on an item.
type PriceUpdater interface {
	UpdatePrice(ctx context.Context, itemType sources.ItemType, id int64, price float64) (bool, error)
}

// Request asks for the price of one item. ItemID 0 means "search only".
type Request struct {
	ItemID int64         `json:"item_id,omitempty"`
	Query  sources.Query `json:"query"`
}

// Outcome reports a finished job.
type Outcome struct {
	JobID      uuid.UUID      `json:"job_id"`
	Request    Request        `json:"request"`
	Result     *search.Result `json:"result"`
	Updated    bool           `json:"updated"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Failure reports a job that did not produce a stored price.
type Failure struct {
	JobID   uuid.UUID
	Request Request
	Err     error
}

// Error implements error.
func (f Failure) Error() string {
	return fmt.Sprintf("price job %s (%s %q): %v", f.JobID, f.Request.Query.ItemType, f.Request.Query.ItemName, f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error {
	return f.Err
}

// Options configures a Queue. Zero values select defaults.
type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Logger     *logging.Logger
}

type job struct {
	id  uuid.UUID
	req Request
}

// Queue is a bounded queue of price jobs served by a fixed worker pool.
type Queue struct {
	searcher Searcher
	updater  PriceUpdater
	timeout  time.Duration
	logger   *logging.Logger

	jobs    chan job
	results chan Outcome
	errors  chan Failure

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue and starts its workers. updater may be nil, in
// which case discovered prices are only reported.
func NewQueue(searcher Searcher, updater PriceUpdater, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		searcher: searcher,
		updater:  updater,
		timeout:  opts.JobTimeout,
		logger:   opts.Logger.With("component", "jobs"),
		jobs:     make(chan job, opts.QueueSize),
		results:  make(chan Outcome, opts.QueueSize),
		errors:   make(chan Failure, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.logger.Info("Price job queue started", "workers", opts.Workers, "queue_size", opts.QueueSize)
	return q
}

// Submit enqueues a request without blocking.
func (q *Queue) Submit(req Request) (uuid.UUID, error) {
	if strings.TrimSpace(req.Query.ItemName) == "" {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidRequest, search.ErrEmptyItemName)
	}
	if !req.Query.ItemType.Valid() {
		return uuid.Nil, fmt.Errorf("%w: %w: %q", ErrInvalidRequest, sources.ErrInvalidItemType, req.Query.ItemType)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return uuid.Nil, ErrQueueClosed
	}

	j := job{id: uuid.New(), req: req}
	select {
	case q.jobs <- j:
		metrics.SetJobQueueDepth(len(q.jobs))
		q.logger.Debug("Price job queued", "job_id", j.id.String(), "item", req.Query.ItemName, "item_id", req.ItemID)
		return j.id, nil
	default:
		metrics.RecordJob("rejected")
		return uuid.Nil, ErrQueueFull
	}
}

// Results delivers finished jobs. It is closed by Close.
func (q *Queue) Results() <-chan Outcome {
	return q.results
}

// Errors delivers failed jobs. It is closed by Close.
func (q *Queue) Errors() <-chan Failure {
	return q.errors
}

// Close stops accepting requests, lets workers finish what is queued, and
// closes the Results and Errors channels. If ctx expires first, running
// searches are cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		q.cancel()
		<-done
		err = ctx.Err()
	}
	q.cancel()

	close(q.results)
	close(q.errors)
	q.logger.Info("Price job queue stopped")
	return err
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	for j := range q.jobs {
		metrics.SetJobQueueDepth(len(q.jobs))
		q.process(n, j)
	}
}

func (q *Queue) process(worker int, j job) {
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	ctx, span := tracing.StartJobSpan(ctx, j.id.String(), string(j.req.Query.ItemType))
	defer span.End()

	logger := q.logger.With("job_id", j.id.String(), "worker", worker, "item", j.req.Query.ItemName)
	logger.Debug("Price job started")

	result, err := q.searcher.SearchPrice(ctx, j.req.Query)
	if err != nil {
		err = fmt.Errorf("search: %w", err)
		tracing.RecordError(span, err)
		q.fail(logger, j, err)
		return
	}
	if result == nil || result.AveragePrice == nil {
		tracing.SetOutcome(span, "no_price")
		q.fail(logger, j, ErrNoPriceFound)
		return
	}

	updated := false
	if j.req.ItemID != 0 && q.updater != nil {
		updated, err = q.updater.UpdatePrice(ctx, j.req.Query.ItemType, j.req.ItemID, *result.AveragePrice)
		if err != nil {
			err = fmt.Errorf("update price: %w", err)
			tracing.RecordError(span, err)
			q.fail(logger, j, err)
			return
		}
	}

	status := "priced"
	if updated {
		status = "updated"
	}
	tracing.SetOutcome(span, status)
	metrics.RecordJob(status)
	logger.Info("Price job finished", "average_price", *result.AveragePrice, "updated", updated)

	q.publishOutcome(logger, Outcome{
		JobID:      j.id,
		Request:    j.req,
		Result:     result,
		Updated:    updated,
		FinishedAt: time.Now(),
	})
}

func (q *Queue) fail(logger *logging.Logger, j job, err error) {
	status := "failed"
	if errors.Is(err, ErrNoPriceFound) {
		status = "no_price"
		logger.Info("Price job found no price")
	} else {
		logger.Warn("Price job failed", "error", err)
	}
	metrics.RecordJob(status)

	select {
	case q.errors <- Failure{JobID: j.id, Request: j.req, Err: err}:
	default:
		logger.Warn("Dropping job failure, error channel is full", "error", err)
	}
}

func (q *Queue) publishOutcome(logger *logging.Logger, o Outcome) {
	select {
	case q.results <- o:
	default:
		logger.Warn("Dropping job outcome, result channel is full")
	}
}
