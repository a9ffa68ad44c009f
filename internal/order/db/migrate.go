package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-labeling/internal/models"
)

// CreateTables creates the service schema through bun model definitions.
// Production deployments run the SQL migrations instead; this path backs
// tests and first-run sqlite setups.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.TableFilter)(nil),
		(*models.PrintJob)(nil),
		(*models.LabelTemplate)(nil),
	}

	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", table, err)
		}
	}
	return nil
}
