// Package history keeps a local log of computed price searches for diagnostics.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

var (
	// ErrPathRequired indicates a missing database path.
	ErrPathRequired = errors.New("history database path is required")
	// ErrInvalidLimit indicates a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Entry is one recorded search.
type Entry struct {
	ID            int64            `json:"id"`
	ItemType      sources.ItemType `json:"item_type"`
	ItemName      string           `json:"item_name"`
	Dosage        string           `json:"dosage,omitempty"`
	AveragePrice  *float64         `json:"average_price"`
	Sources       []string         `json:"sources"`
	RawCount      int              `json:"raw_count"`
	FilteredCount int              `json:"filtered_count"`
	DurationMs    int64            `json:"duration_ms"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Recorder stores computed searches and reads them back.
type Recorder interface {
	search.Recorder
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// SQLiteRecorder persists searches to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logging.Logger
}

// Ensure SQLiteRecorder implements Recorder.
var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(path string, logger *logging.Logger) (*SQLiteRecorder, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With("component", "history")}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("Search history opened", "path", path)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_searches (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at     INTEGER NOT NULL,
			item_type      TEXT NOT NULL,
			item_name      TEXT NOT NULL,
			dosage         TEXT,
			average_price  REAL,
			sources        TEXT,
			raw_count      INTEGER,
			filtered_count INTEGER,
			duration_ms    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_searches_created ON price_searches(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_price_searches_item ON price_searches(item_type, item_name)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordSearch implements search.Recorder.
func (r *SQLiteRecorder) RecordSearch(ctx context.Context, c search.Computation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := c.Result.LastUpdated
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO price_searches
			(created_at, item_type, item_name, dosage, average_price, sources, raw_count, filtered_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.UnixMilli(),
		string(c.Query.ItemType),
		strings.TrimSpace(c.Query.ItemName),
		nullString(strings.TrimSpace(c.Query.Dosage)),
		c.Result.AveragePrice,
		c.Result.Source,
		c.RawCount,
		c.FilteredCount,
		c.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert price search: %w", err)
	}
	return nil
}

// Recent returns the latest searches, newest first.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, item_type, item_name, COALESCE(dosage, ''), average_price,
		        COALESCE(sources, ''), raw_count, filtered_count, duration_ms
		 FROM price_searches ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query price searches: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e        Entry
			created  int64
			itemType string
			avg      sql.NullFloat64
			srcs     string
		)
		if err := rows.Scan(&e.ID, &created, &itemType, &e.ItemName, &e.Dosage, &avg,
			&srcs, &e.RawCount, &e.FilteredCount, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan price search: %w", err)
		}
		e.ItemType = sources.ItemType(itemType)
		e.CreatedAt = time.UnixMilli(created).UTC()
		if avg.Valid {
			v := avg.Float64
			e.AveragePrice = &v
		}
		e.Sources = []string{}
		if srcs != "" {
			e.Sources = strings.Split(srcs, ",")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Ensure NoopRecorder implements Recorder.
var _ Recorder = NoopRecorder{}

// RecordSearch does nothing.
func (NoopRecorder) RecordSearch(context.Context, search.Computation) error { return nil }

// Recent returns no entries.
func (NoopRecorder) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

// Close does nothing.
func (NoopRecorder) Close() error { return nil }
