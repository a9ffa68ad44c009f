package dishes_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-labeling/internal/dishes"
)

// setupDishDB builds an in-memory copy of the export schema.
func setupDishDB(t *testing.T) *dishes.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE dishes (
			rid INTEGER PRIMARY KEY,
			name TEXT,
			rkeeper_code TEXT,
			protein REAL, fat REAL, carbs REAL, calories REAL,
			weight_g REAL,
			has_extra_labels INTEGER DEFAULT 0
		)`,
		`CREATE TABLE ingredients (dish_rid INTEGER, name TEXT)`,
		`CREATE TABLE dish_extra_labels (
			main_dish_rid INTEGER,
			extra_dish_name TEXT,
			extra_dish_protein REAL, extra_dish_fat REAL, extra_dish_carbs REAL,
			extra_dish_calories REAL, extra_dish_weight_g REAL
		)`,
	}
	for _, stmt := range stmts {
		_, err := bunDB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	return dishes.NewDB(bunDB)
}

func TestGetByRKCode(t *testing.T) {
	db := setupDishDB(t)
	ctx := context.Background()

	_, err := db.Bun.ExecContext(ctx, `INSERT INTO dishes VALUES
		(1, 'Борщ', '2005', 12.5, 8.0, 25.0, 2520, 350, 1)`)
	require.NoError(t, err)
	_, err = db.Bun.ExecContext(ctx, `INSERT INTO ingredients VALUES
		(1, 'говядина'), (1, 'свекла')`)
	require.NoError(t, err)
	_, err = db.Bun.ExecContext(ctx, `INSERT INTO dish_extra_labels VALUES
		(1, 'Сметана', 2.7, 20.0, 3.2, 2060, 30)`)
	require.NoError(t, err)

	dish, err := db.GetByRKCode(ctx, "2005")
	require.NoError(t, err)

	assert.Equal(t, "2005", dish.RKCode)
	assert.Equal(t, "Борщ", dish.Name)
	assert.Equal(t, 350, dish.WeightG)
	assert.Equal(t, 2520, dish.Calories)
	assert.Equal(t, 12.5, dish.Protein)
	assert.Equal(t, []string{"говядина", "свекла"}, dish.Ingredients)

	require.Len(t, dish.ExtraLabels, 1)
	assert.Equal(t, "Сметана", dish.ExtraLabels[0].Name)
	assert.Equal(t, 30, dish.ExtraLabels[0].WeightG)
	assert.Equal(t, 2060, dish.ExtraLabels[0].Calories)
}

func TestGetByRKCodeSkipsExtrasWhenFlagUnset(t *testing.T) {
	db := setupDishDB(t)
	ctx := context.Background()

	// Extra rows exist but the flag says no; the export flag wins.
	_, err := db.Bun.ExecContext(ctx, `INSERT INTO dishes VALUES
		(2, 'Чай', '2020', 0, 0, 0, 10, 200, 0)`)
	require.NoError(t, err)
	_, err = db.Bun.ExecContext(ctx, `INSERT INTO dish_extra_labels VALUES
		(2, 'Лимон', 0, 0, 0, 30, 10)`)
	require.NoError(t, err)

	dish, err := db.GetByRKCode(ctx, "2020")
	require.NoError(t, err)
	assert.Empty(t, dish.ExtraLabels)
}

func TestGetByRKCodeNotFound(t *testing.T) {
	db := setupDishDB(t)

	_, err := db.GetByRKCode(context.Background(), "0000")
	assert.ErrorIs(t, err, dishes.ErrDishNotFound)
}
