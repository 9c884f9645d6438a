// Package scheduler periodically queues price searches for unpriced items.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/store"
)

// DefaultBatchSize is the number of items queued per run.
const DefaultBatchSize = 50

// ItemLister lists items that have no price yet.
type ItemLister interface {
	ListUnpriced(ctx context.Context, limit int) ([]store.Item, error)
}

// Submitter accepts background price jobs.
type Submitter interface {
	Submit(req jobs.Request) (uuid.UUID, error)
}

// Options configures a Backfill.
type Options struct {
	Schedule  string
	BatchSize int
	Timeout   time.Duration
	Logger    *logging.Logger
}

// Report summarizes one backfill run.
type Report struct {
	Listed    int `json:"listed"`
	Submitted int `json:"submitted"`
	Rejected  int `json:"rejected"`
}

// Backfill queues searches for unpriced items on a cron schedule. Runs never
// overlap: a run that is still going when the next one fires causes the next
// one to be skipped.
type Backfill struct {
	cron      *cron.Cron
	lister    ItemLister
	submitter Submitter
	batch     int
	timeout   time.Duration
	logger    *logging.Logger
}

// NewBackfill creates a backfill job. The schedule uses six fields (with
// seconds) or a descriptor such as "@hourly".
func NewBackfill(lister ItemLister, submitter Submitter, opts Options) (*Backfill, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoopLogger()
	}

	logger := opts.Logger.With("component", "backfill")
	cl := cronLogger{logger: logger}
	b := &Backfill{
		cron:      cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		lister:    lister,
		submitter: submitter,
		batch:     opts.BatchSize,
		timeout:   opts.Timeout,
		logger:    logger,
	}

	if _, err := b.cron.AddFunc(opts.Schedule, b.scheduled); err != nil {
		return nil, fmt.Errorf("register backfill %q: %w", opts.Schedule, err)
	}
	return b, nil
}

// Start starts the cron scheduler.
func (b *Backfill) Start() {
	b.cron.Start()
	b.logger.Info("Backfill scheduler started", "batch_size", b.batch)
}

// Stop stops the scheduler and waits for a running backfill to finish.
func (b *Backfill) Stop() {
	<-b.cron.Stop().Done()
	b.logger.Info("Backfill scheduler stopped")
}

// RunNow performs one backfill immediately.
func (b *Backfill) RunNow(ctx context.Context) (Report, error) {
	var report Report

	items, err := b.lister.ListUnpriced(ctx, b.batch)
	if err != nil {
		return report, fmt.Errorf("list unpriced items: %w", err)
	}
	report.Listed = len(items)

	for i, item := range items {
		_, err := b.submitter.Submit(jobs.Request{ItemID: item.ID, Query: item.Query()})
		switch {
		case err == nil:
			report.Submitted++
		case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrQueueClosed):
			// The rest stays unpriced and is picked up by a later run.
			report.Rejected += len(items) - i
			b.logger.Warn("Backfill stopped early", "error", err, "remaining", len(items)-i)
			return report, nil
		default:
			report.Rejected++
			b.logger.Warn("Backfill item rejected", "item_type", item.ItemType, "id", item.ID, "error", err)
		}
	}

	b.logger.Info("Backfill queued price jobs",
		"listed", report.Listed,
		"submitted", report.Submitted,
		"rejected", report.Rejected)
	return report, nil
}

func (b *Backfill) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if _, err := b.RunNow(ctx); err != nil {
		b.logger.Error("Backfill failed", "error", err)
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
