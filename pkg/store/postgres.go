// Package store reads and updates item prices in the inventory database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Postgres driver.
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

var (
	// ErrDSNRequired indicates a missing connection string.
	ErrDSNRequired = errors.New("database dsn is required")
	// ErrInvalidLimit indicates a non-positive list limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// tables maps item types to the inventory tables that hold them.
var tables = map[sources.ItemType]string{
	sources.ItemTypeMedicine: "medicines",
	sources.ItemTypeInput:    "inputs",
}

// Item is an inventory item waiting for a price.
type Item struct {
	ID              int64
	ItemType        sources.ItemType
	Name            string
	Dosage          string
	MeasurementUnit string
}

// Query returns the price query for the item.
func (i Item) Query() sources.Query {
	return sources.Query{
		ItemName:        i.Name,
		ItemType:        i.ItemType,
		Dosage:          i.Dosage,
		MeasurementUnit: i.MeasurementUnit,
	}
}

// ItemStore updates prices of medicines and inputs in Postgres.
type ItemStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, logger *logging.Logger) (*ItemStore, error) {
	if dsn == "" {
		return nil, ErrDSNRequired
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *logging.Logger) *ItemStore {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &ItemStore{db: db, logger: logger.With("component", "store")}
}

// Close closes the connection pool.
func (s *ItemStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health pings the database.
func (s *ItemStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// UpdatePrice stores a discovered price on an item that still has none. It
// reports false when the item is missing or already priced, so a manually
// entered price is never overwritten.
func (s *ItemStore) UpdatePrice(ctx context.Context, itemType sources.ItemType, id int64, price float64) (bool, error) {
	query, err := updatePriceQuery(itemType)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, query, decimal.NewFromFloat(price).Round(2), id)
	if err != nil {
		return false, fmt.Errorf("update %s %d: %w", itemType, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s %d: %w", itemType, id, err)
	}

	if n == 0 {
		s.logger.Debug("Item not updated, missing or already priced", "item_type", itemType, "id", id)
		return false, nil
	}
	s.logger.Info("Item price updated", "item_type", itemType, "id", id, "price", price)
	return true, nil
}

// ListUnpriced returns up to limit items of both types whose price is unset,
// medicines first, each type ordered by id.
func (s *ItemStore) ListUnpriced(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx, listUnpricedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpriced items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, limit)
	for rows.Next() {
		var (
			it       Item
			itemType string
		)
		if err := rows.Scan(&itemType, &it.ID, &it.Name, &it.Dosage, &it.MeasurementUnit); err != nil {
			return nil, fmt.Errorf("scan unpriced item: %w", err)
		}
		it.ItemType = sources.ItemType(itemType)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unpriced items: %w", err)
	}
	return items, nil
}

const listUnpricedQuery = `
	SELECT item_type, id, name, dosage, measurement_unit FROM (
		SELECT 'medicine' AS item_type, 0 AS sort_order, id, name,
		       COALESCE(dosage, '') AS dosage, COALESCE(measurement_unit, '') AS measurement_unit
		FROM medicines WHERE price IS NULL
		UNION ALL
		SELECT 'input' AS item_type, 1 AS sort_order, id, name,
		       '' AS dosage, '' AS measurement_unit
		FROM inputs WHERE price IS NULL
	) unpriced
	ORDER BY sort_order, id
	LIMIT $1`

func updatePriceQuery(itemType sources.ItemType) (string, error) {
	table, ok := tables[itemType]
	if !ok {
		return "", fmt.Errorf("%w: %q", sources.ErrInvalidItemType, itemType)
	}
	return fmt.Sprintf(`UPDATE %s SET price = $1, updated_at = NOW() WHERE id = $2 AND price IS NULL`, table), nil
}
