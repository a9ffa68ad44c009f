package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-labeling/internal/models"
)

// Store wraps order, item and table-filter queries. It runs against either
// the root connection or a transaction, so the reconciler can execute its
// whole unit atomically through RunInTx.
type Store struct {
	db bun.IDB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// RunInTx executes fn against a transactional copy of the store. Any error
// rolls back everything fn did.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	root, ok := s.db.(*bun.DB)
	if !ok {
		// Already inside a transaction.
		return fn(ctx, s)
	}
	return root.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// ---------------- ORDERS ----------------

// GetOrderByIdent → fetch one order by its external (visit, orderIdent) pair.
// Returns nil when no such order exists.
func (s *Store) GetOrderByIdent(ctx context.Context, visitID, orderIdent string) (*models.Order, error) {
	var order models.Order
	err := s.db.NewSelect().
		Model(&order).
		Where("visit_id = ?", visitID).
		Where("order_ident = ?", orderIdent).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder → insert new order and backfill its generated id.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.NewInsert().
		Model(order).
		Returning("id").
		Exec(ctx)
	return err
}

// UpdateOrder → update the reconciler-owned fields.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.NewUpdate().
		Model(order).
		Column("table_code", "order_total", "status", "updated_at", "closed_at").
		Where("id = ?", order.ID).
		Exec(ctx)
	return err
}

// ListOrders → recent orders with their items, newest first. An empty
// status means all statuses.
func (s *Store) ListOrders(ctx context.Context, status string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	q := s.db.NewSelect().
		Model(&orders).
		Relation("Items").
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- ORDER ITEMS ----------------

func (s *Store) CountItems(ctx context.Context, orderID int64) (int, error) {
	return s.db.NewSelect().
		Model((*models.OrderItem)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
}

func (s *Store) GetItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemByCode → one item by (order_id, rk_code); nil when absent.
func (s *Store) GetItemByCode(ctx context.Context, orderID int64, rkCode string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.NewSelect().
		Model(&item).
		Where("order_id = ?", orderID).
		Where("rk_code = ?", rkCode).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.NewSelect().
		Model(&item).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.OrderItem) error {
	_, err := s.db.NewInsert().
		Model(item).
		Returning("id").
		Exec(ctx)
	return err
}

func (s *Store) UpdateItemQuantity(ctx context.Context, id int64, quantity int) error {
	_, err := s.db.NewUpdate().
		Model((*models.OrderItem)(nil)).
		Set("quantity = ?", quantity).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteItems → wipe all items for an order (full-state replacement).
func (s *Store) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := s.db.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- TABLE FILTER ----------------

// TableAllowed applies the filter gate: with no enabled filter rows every
// table passes; otherwise only listed tables do.
func (s *Store) TableAllowed(ctx context.Context, tableCode string) (bool, error) {
	enabled, err := s.db.NewSelect().
		Model((*models.TableFilter)(nil)).
		Where("enabled = ?", true).
		Count(ctx)
	if err != nil {
		return false, err
	}
	if enabled == 0 {
		return true, nil
	}

	matched, err := s.db.NewSelect().
		Model((*models.TableFilter)(nil)).
		Where("table_code = ?", tableCode).
		Where("enabled = ?", true).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return matched > 0, nil
}
