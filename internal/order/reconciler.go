package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	"ms-labeling/internal/order/db"
)

// ErrReconciliation marks a persistence fault during reconciliation. The
// whole event transaction is rolled back; the webhook still answers 200.
var ErrReconciliation = errors.New("order: reconciliation failed")

// Notifier fans out state transitions. Delivery failures must never fail the
// transition itself.
type Notifier interface {
	PublishOrderStatus(orderID int64, status string, context map[string]interface{}) error
}

// Result reports what one reconciliation did, for logging and the webhook
// response body.
type Result struct {
	OrderID        int64 `json:"order_id"`
	ItemsProcessed int   `json:"items_processed"`
	JobsCreated    int   `json:"jobs_created"`
	Discarded      bool  `json:"discarded,omitempty"`
	Cancelled      bool  `json:"cancelled,omitempty"`
}

// Reconciler folds normalized POS events into Order/OrderItem state.
type Reconciler struct {
	store *db.Store
	kafka Notifier
	log   *logger.Logger
	nowFn func() time.Time
}

func NewReconciler(store *db.Store, kafka Notifier, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, kafka: kafka, log: log, nowFn: time.Now}
}

// Reconcile applies one event inside a single transaction. A filtered-out
// table is success with nothing persisted.
func (r *Reconciler) Reconcile(ctx context.Context, event *models.PosEvent) (*Result, error) {
	res := &Result{}
	var created, cancelled bool
	var orderID int64

	err := r.store.RunInTx(ctx, func(ctx context.Context, tx *db.Store) error {
		allowed, err := tx.TableAllowed(ctx, event.TableCode)
		if err != nil {
			return err
		}
		if !allowed {
			res.Discarded = true
			return nil
		}

		ord, err := tx.GetOrderByIdent(ctx, event.VisitID, event.OrderIdent)
		if err != nil {
			return err
		}
		if ord == nil {
			ord = &models.Order{
				VisitID:    event.VisitID,
				OrderIdent: event.OrderIdent,
				TableCode:  event.TableCode,
				OrderTotal: event.OrderSum,
				Status:     models.OrderNotPrinted,
				CreatedAt:  r.nowFn(),
			}
			if err := tx.CreateOrder(ctx, ord); err != nil {
				return err
			}
			created = true
		} else {
			ord.TableCode = event.TableCode
			ord.OrderTotal = event.OrderSum
			ord.UpdatedAt = r.nowFn()
			if err := tx.UpdateOrder(ctx, ord); err != nil {
				return err
			}
		}
		orderID = ord.ID

		// Item count before this event's changes; the cancellation rule must
		// not fire for a brand-new, already-empty order.
		priorItems, err := tx.CountItems(ctx, ord.ID)
		if err != nil {
			return err
		}

		if event.FullState() {
			if err := r.replaceItems(ctx, tx, ord, event.Items); err != nil {
				return err
			}
		} else {
			if err := r.applyDeltas(ctx, tx, ord, event.Items); err != nil {
				return err
			}
		}
		res.ItemsProcessed = len(event.Items)

		if event.TotalKnown && event.TotalPieces == 0 && priorItems > 0 {
			now := r.nowFn()
			ord.Status = models.OrderCancelled
			ord.ClosedAt = &now
			ord.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, ord); err != nil {
				return err
			}
			if err := tx.DeleteItems(ctx, ord.ID); err != nil {
				return err
			}
			cancelled = true
		}

		res.OrderID = ord.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconciliation, err)
	}

	res.Cancelled = cancelled
	if r.log != nil {
		switch {
		case res.Discarded:
		case cancelled:
			r.log.LogOrder("CANCELLED", event.OrderIdent,
				fmt.Sprintf("order %d emptied at the POS", orderID))
		case created:
			r.log.LogOrder("CREATED", event.OrderIdent,
				fmt.Sprintf("order %d with %d item changes", orderID, len(event.Items)))
		}
	}
	r.notify(orderID, created, cancelled, event)
	return res, nil
}

// replaceItems rebuilds the item set from a complete snapshot.
func (r *Reconciler) replaceItems(ctx context.Context, tx *db.Store, ord *models.Order, items []models.ItemChange) error {
	if err := tx.DeleteItems(ctx, ord.ID); err != nil {
		return err
	}
	for _, change := range items {
		if change.NewQuantity <= 0 {
			continue
		}
		item := &models.OrderItem{
			OrderID:   ord.ID,
			RKCode:    change.RKCode,
			DishName:  change.Name,
			Quantity:  change.NewQuantity,
			CreatedAt: r.nowFn(),
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// applyDeltas folds a changelog into the existing item set.
func (r *Reconciler) applyDeltas(ctx context.Context, tx *db.Store, ord *models.Order, items []models.ItemChange) error {
	for _, change := range items {
		existing, err := tx.GetItemByCode(ctx, ord.ID, change.RKCode)
		if err != nil {
			return err
		}

		if change.IsDeleted || change.NewQuantity <= 0 {
			if existing != nil {
				if err := tx.DeleteItem(ctx, existing.ID); err != nil {
					return err
				}
			}
			continue
		}

		if existing != nil {
			if err := tx.UpdateItemQuantity(ctx, existing.ID, change.NewQuantity); err != nil {
				return err
			}
			continue
		}

		item := &models.OrderItem{
			OrderID:   ord.ID,
			RKCode:    change.RKCode,
			DishName:  change.Name,
			Quantity:  change.NewQuantity,
			CreatedAt: r.nowFn(),
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) notify(orderID int64, created, cancelled bool, event *models.PosEvent) {
	if r.kafka == nil || orderID == 0 {
		return
	}

	status := ""
	switch {
	case cancelled:
		status = models.OrderCancelled
	case created:
		status = models.OrderNotPrinted
	default:
		return
	}

	err := r.kafka.PublishOrderStatus(orderID, status, map[string]interface{}{
		"visit_id":    event.VisitID,
		"order_ident": event.OrderIdent,
		"table_code":  event.TableCode,
		"event_type":  event.EventType,
	})
	if err != nil && r.log != nil {
		r.log.Error("KAFKA", fmt.Sprintf("Failed to publish order status: %v", err))
	}
}
