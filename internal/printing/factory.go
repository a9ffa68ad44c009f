package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-labeling/internal/dishes"
	"ms-labeling/internal/label"
	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	printdb "ms-labeling/internal/printing/db"
)

// Factory turns an order into its print jobs. Each item yields one MAIN
// label per portion plus one EXTRA label per portion for every extra label
// bound to the dish. Payloads are rendered here, once per distinct label,
// so the queue worker never touches templates or dish data.
type Factory struct {
	store   *printdb.Store
	dishes  dishes.Lookup
	encoder *label.Encoder
	format  label.Format
	log     *logger.Logger

	mu        sync.Mutex
	lastStamp time.Time
}

func NewFactory(store *printdb.Store, lookup dishes.Lookup, encoder *label.Encoder,
	format label.Format, log *logger.Logger) *Factory {
	return &Factory{
		store:   store,
		dishes:  lookup,
		encoder: encoder,
		format:  format,
		log:     log,
	}
}

// BuildJobs renders and enqueues the labels for the given order items.
// A dish missing from the reference database still prints: the label falls
// back to the name carried on the order item. A render failure skips that
// one label and keeps going.
func (f *Factory) BuildJobs(ctx context.Context, order *models.Order, items []models.OrderItem) ([]*models.PrintJob, error) {
	tpl, err := f.store.GetDefaultTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default template: %w", err)
	}
	if tpl == nil {
		return nil, errors.New("no default label template configured")
	}
	cfg, err := tpl.ParseConfig()
	if err != nil {
		return nil, err
	}

	var jobs []*models.PrintJob
	for i := range items {
		item := &items[i]
		if item.Quantity <= 0 {
			continue
		}

		dish, err := f.dishes.GetByRKCode(ctx, item.RKCode)
		if errors.Is(err, dishes.ErrDishNotFound) || dish == nil && err == nil {
			f.log.LogPrinter("DISH_FALLBACK", item.RKCode,
				"dish not in reference database, printing name only")
			dish = models.FallbackDish(item.RKCode, item.DishName)
		} else if err != nil {
			return nil, fmt.Errorf("dish lookup %s: %w", item.RKCode, err)
		}

		mainPayload, err := f.encoder.Encode(label.DishToData(dish, models.LabelMain), cfg, f.format)
		if err != nil {
			f.log.LogPrinter("RENDER_SKIP", item.RKCode, err.Error())
		} else {
			for n := 0; n < item.Quantity; n++ {
				jobs = append(jobs, f.newJob(order.ID, item.ID, models.LabelMain, mainPayload))
			}
		}

		for _, extra := range dish.ExtraLabels {
			extraPayload, err := f.encoder.Encode(label.ExtraToData(dish, extra), cfg, f.format)
			if err != nil {
				f.log.LogPrinter("RENDER_SKIP", item.RKCode,
					fmt.Sprintf("extra label %q: %v", extra.Name, err))
				continue
			}
			for n := 0; n < item.Quantity; n++ {
				jobs = append(jobs, f.newJob(order.ID, item.ID, models.LabelExtra, extraPayload))
			}
		}
	}

	if err := f.store.CreateJobs(ctx, jobs); err != nil {
		return nil, fmt.Errorf("enqueue print jobs: %w", err)
	}
	if len(jobs) > 0 {
		f.log.LogPrinter("ENQUEUED", fmt.Sprintf("order %d", order.ID),
			fmt.Sprintf("%d label(s) queued", len(jobs)))
	}
	return jobs, nil
}

// BuildTestJob renders a single label outside any order, for printer checks.
func (f *Factory) BuildTestJob(ctx context.Context) (*models.PrintJob, error) {
	tpl, err := f.store.GetDefaultTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default template: %w", err)
	}
	if tpl == nil {
		return nil, errors.New("no default label template configured")
	}
	cfg, err := tpl.ParseConfig()
	if err != nil {
		return nil, err
	}

	dish := &models.Dish{
		RKCode:      "0000",
		Name:        "Тестовая этикетка",
		WeightG:     100,
		Calories:    1000,
		Protein:     10,
		Fat:         5,
		Carbs:       20,
		Ingredients: []string{"проверка", "печати"},
	}
	payload, err := f.encoder.Encode(label.DishToData(dish, models.LabelMain), cfg, f.format)
	if err != nil {
		return nil, err
	}

	job := f.newJob(0, 0, models.LabelMain, payload)
	if err := f.store.CreateJobs(ctx, []*models.PrintJob{job}); err != nil {
		return nil, fmt.Errorf("enqueue test job: %w", err)
	}
	return job, nil
}

// newJob stamps created_at itself with a strictly increasing clock so a
// batch keeps its FIFO order even when the database truncates timestamps.
func (f *Factory) newJob(orderID, itemID int64, labelType, payload string) *models.PrintJob {
	job := &models.PrintJob{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		LabelType:  labelType,
		Payload:    payload,
		Status:     models.JobQueued,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  f.nextStamp(),
	}
	if itemID != 0 {
		job.OrderItemID = &itemID
	}
	return job
}

func (f *Factory) nextStamp() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(f.lastStamp) {
		now = f.lastStamp.Add(time.Microsecond)
	}
	f.lastStamp = now
	return now
}
