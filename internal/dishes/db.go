package dishes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-labeling/internal/models"
)

// ErrDishNotFound is soft: callers fall back to a zero-valued nutrition
// record and keep printing.
var ErrDishNotFound = errors.New("dishes: not found")

type dishRow struct {
	bun.BaseModel `bun:"table:dishes"`

	RID            int64   `bun:"rid,pk"`
	Name           string  `bun:"name"`
	RKeeperCode    string  `bun:"rkeeper_code"`
	Protein        float64 `bun:"protein"`
	Fat            float64 `bun:"fat"`
	Carbs          float64 `bun:"carbs"`
	Calories       float64 `bun:"calories"`
	WeightG        float64 `bun:"weight_g"`
	HasExtraLabels int     `bun:"has_extra_labels"`
}

type ingredientRow struct {
	bun.BaseModel `bun:"table:ingredients"`

	DishRID int64  `bun:"dish_rid"`
	Name    string `bun:"name"`
}

type extraLabelRow struct {
	bun.BaseModel `bun:"table:dish_extra_labels"`

	MainDishRID int64   `bun:"main_dish_rid"`
	Name        string  `bun:"extra_dish_name"`
	Protein     float64 `bun:"extra_dish_protein"`
	Fat         float64 `bun:"extra_dish_fat"`
	Carbs       float64 `bun:"extra_dish_carbs"`
	Calories    float64 `bun:"extra_dish_calories"`
	WeightG     float64 `bun:"extra_dish_weight_g"`
}

// DB reads the dish master export (dishes_with_extras.sqlite). The file is
// produced offline and never written by this service.
type DB struct {
	Bun *bun.DB
}

// Open opens the dish master sqlite file read-only.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open dish db: %w", err)
	}
	return &DB{Bun: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

// NewDB wraps an existing connection; tests build their own in-memory copy.
func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) Close() error {
	return d.Bun.Close()
}

// GetByRKCode resolves one dish with its ingredients and extra labels.
func (d *DB) GetByRKCode(ctx context.Context, rkCode string) (*models.Dish, error) {
	var row dishRow
	err := d.Bun.NewSelect().
		Model(&row).
		Where("rkeeper_code = ?", rkCode).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDishNotFound
	}
	if err != nil {
		return nil, err
	}

	dish := &models.Dish{
		RKCode:      row.RKeeperCode,
		Name:        row.Name,
		WeightG:     int(row.WeightG),
		Calories:    int(row.Calories),
		Protein:     row.Protein,
		Fat:         row.Fat,
		Carbs:       row.Carbs,
		Ingredients: []string{},
		ExtraLabels: []models.ExtraLabel{},
	}

	var ingredients []ingredientRow
	err = d.Bun.NewSelect().
		Model(&ingredients).
		Where("dish_rid = ?", row.RID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	for _, ing := range ingredients {
		dish.Ingredients = append(dish.Ingredients, ing.Name)
	}

	if row.HasExtraLabels != 0 {
		var extras []extraLabelRow
		err = d.Bun.NewSelect().
			Model(&extras).
			Where("main_dish_rid = ?", row.RID).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		for _, ex := range extras {
			dish.ExtraLabels = append(dish.ExtraLabels, models.ExtraLabel{
				Name:     ex.Name,
				WeightG:  int(ex.WeightG),
				Calories: int(ex.Calories),
				Protein:  ex.Protein,
				Fat:      ex.Fat,
				Carbs:    ex.Carbs,
			})
		}
	}

	return dish, nil
}
