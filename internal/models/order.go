package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. CANCELLED is terminal; the rest follow the print lifecycle.
const (
	OrderNotPrinted = "NOT_PRINTED"
	OrderPrinting   = "PRINTING"
	OrderDone       = "DONE"
	OrderFailed     = "FAILED"
	OrderCancelled  = "CANCELLED"
)

// Order is one rKeeper order. The (visit_id, order_ident) pair is the
// external identity; there is exactly one row per pair.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         int64      `bun:"id,pk,autoincrement"`
	VisitID    string     `bun:"visit_id,notnull"`
	OrderIdent string     `bun:"order_ident,notnull"`
	TableCode  string     `bun:"table_code,notnull"`
	OrderTotal float64    `bun:"order_total"`
	Status     string     `bun:"status,notnull,default:'NOT_PRINTED'"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero"`
	ClosedAt   *time.Time `bun:"closed_at"`

	Items []OrderItem `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem is one dish line on an order, unique per (order_id, rk_code).
// Quantity is in portions; an item that reconciles to zero portions is
// deleted rather than kept.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID       int64  `bun:"id,pk,autoincrement"`
	OrderID  int64  `bun:"order_id,notnull"`
	RKCode   string `bun:"rk_code,notnull"`
	DishName string `bun:"dish_name"`
	Quantity int    `bun:"quantity,notnull"`
	WeightG  int    `bun:"weight_g"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// TableFilter limits webhook processing to selected tables. When no enabled
// rows exist every table is processed.
type TableFilter struct {
	bun.BaseModel `bun:"table:table_filter"`

	TableCode string `bun:"table_code,pk"`
	TableName string `bun:"table_name"`
	Zone      string `bun:"zone"`
	Enabled   bool   `bun:"enabled,notnull,default:true"`
}
