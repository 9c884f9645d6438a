package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

func TestUpdatePriceQuery(t *testing.T) {
	q, err := updatePriceQuery(sources.ItemTypeMedicine)
	require.NoError(t, err)
	assert.Contains(t, q, "UPDATE medicines")
	assert.Contains(t, q, "price IS NULL")

	q, err = updatePriceQuery(sources.ItemTypeInput)
	require.NoError(t, err)
	assert.Contains(t, q, "UPDATE inputs")

	_, err = updatePriceQuery("food")
	assert.ErrorIs(t, err, sources.ErrInvalidItemType)
}

func TestItemStore_RejectsBadArguments(t *testing.T) {
	// sql.Open does not connect, so these fail before reaching a server.
	db, err := sql.Open("postgres", "postgres://nobody@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	s := New(db, logging.NewNoopLogger())
	defer s.Close()

	_, err = s.UpdatePrice(context.Background(), "food", 1, 9.9)
	assert.ErrorIs(t, err, sources.ErrInvalidItemType)

	_, err = s.ListUnpriced(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = Open(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrDSNRequired)
}

func TestItem_Query(t *testing.T) {
	it := Item{ID: 3, ItemType: sources.ItemTypeMedicine, Name: "Dipirona", Dosage: "500mg", MeasurementUnit: "comprimido"}
	assert.Equal(t, sources.Query{
		ItemName:        "Dipirona",
		ItemType:        sources.ItemTypeMedicine,
		Dosage:          "500mg",
		MeasurementUnit: "comprimido",
	}, it.Query())
}

// TestItemStore_Postgres runs against a real database when PRICE_ENGINE_TEST_DSN is set.
func TestItemStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("PRICE_ENGINE_TEST_DSN")
	if dsn == "" {
		t.Skip("PRICE_ENGINE_TEST_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	defer s.Close()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS medicines`,
		`DROP TABLE IF EXISTS inputs`,
		`CREATE TABLE medicines (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL, dosage TEXT,
			measurement_unit TEXT, price NUMERIC(12,2), updated_at TIMESTAMPTZ)`,
		`CREATE TABLE inputs (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL,
			price NUMERIC(12,2), updated_at TIMESTAMPTZ)`,
		`INSERT INTO medicines (name, dosage, measurement_unit, price) VALUES
			('Dipirona', '500mg', 'comprimido', NULL), ('Losartana', '50mg', NULL, 12.50)`,
		`INSERT INTO inputs (name, price) VALUES ('Luva de procedimento', NULL)`,
	} {
		_, err := s.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	items, err := s.ListUnpriced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Item{ID: 1, ItemType: sources.ItemTypeMedicine, Name: "Dipirona", Dosage: "500mg", MeasurementUnit: "comprimido"}, items[0])
	assert.Equal(t, sources.ItemTypeInput, items[1].ItemType)

	updated, err := s.UpdatePrice(ctx, sources.ItemTypeMedicine, 1, 5.633)
	require.NoError(t, err)
	assert.True(t, updated)

	// Already priced: left untouched.
	updated, err = s.UpdatePrice(ctx, sources.ItemTypeMedicine, 2, 99)
	require.NoError(t, err)
	assert.False(t, updated)

	var price string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT price::text FROM medicines WHERE id = 1`).Scan(&price))
	assert.Equal(t, "5.63", price)

	items, err = s.ListUnpriced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Luva de procedimento", items[0].Name)
}
