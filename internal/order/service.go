package order

import (
	"context"
	"errors"
	"fmt"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	"ms-labeling/internal/order/db"
	"ms-labeling/internal/rkeeper"
)

// JobBuilder renders and enqueues labels. Implemented by printing.Factory.
type JobBuilder interface {
	BuildJobs(ctx context.Context, order *models.Order, items []models.OrderItem) ([]*models.PrintJob, error)
	BuildTestJob(ctx context.Context) (*models.PrintJob, error)
}

var ErrOrderNotFound = errors.New("order not found")

// Service ties webhook intake, reconciliation and manual printing together.
type Service struct {
	store      *db.Store
	reconciler *Reconciler
	jobs       JobBuilder
	log        *logger.Logger
}

func NewService(store *db.Store, reconciler *Reconciler, jobs JobBuilder, log *logger.Logger) *Service {
	return &Service{store: store, reconciler: reconciler, jobs: jobs, log: log}
}

// HandleWebhook parses one raw rKeeper notification and reconciles it.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (*Result, error) {
	event, err := rkeeper.Parse(body)
	if err != nil {
		return nil, err
	}

	s.log.LogWebhook(event.EventType, event.OrderIdent,
		fmt.Sprintf("visit %s, table %s, %d item(s)", event.VisitID, event.TableCode, len(event.Items)))

	return s.reconciler.Reconcile(ctx, event)
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) ([]models.Order, error) {
	return s.store.ListOrders(ctx, status, limit)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// PrintOrder enqueues the full label set for an order. Printing is always an
// explicit request; reconciliation never triggers it.
func (s *Service) PrintOrder(ctx context.Context, orderID int64) (int, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return 0, ErrOrderNotFound
	}
	if order.Status == models.OrderCancelled {
		return 0, fmt.Errorf("order %d is cancelled", orderID)
	}

	items, err := s.store.GetItems(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("order %d has no items", orderID)
	}

	jobs, err := s.jobs.BuildJobs(ctx, order, items)
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// PrintDish enqueues labels for one dish outside any order, for walk-up and
// takeaway printing at the counter.
func (s *Service) PrintDish(ctx context.Context, rkCode string, quantity int) (int, error) {
	if quantity <= 0 {
		quantity = 1
	}
	order := &models.Order{}
	items := []models.OrderItem{{RKCode: rkCode, Quantity: quantity}}
	jobs, err := s.jobs.BuildJobs(ctx, order, items)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, fmt.Errorf("no labels rendered for dish %s", rkCode)
	}
	return len(jobs), nil
}

// PrintTest enqueues a single fixed-content label for printer checks.
func (s *Service) PrintTest(ctx context.Context) (string, error) {
	job, err := s.jobs.BuildTestJob(ctx)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}
