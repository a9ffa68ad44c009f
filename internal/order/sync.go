package order

import (
	"context"
	"fmt"
	"time"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	"ms-labeling/internal/order/db"
	"ms-labeling/internal/rkeeper"
)

// Syncer periodically pulls the open order list from rKeeper and refreshes
// header data for orders already known from webhooks. It is a safety net
// against missed notifications: listings carry no dish lines, so unknown
// orders are skipped rather than half-created.
type Syncer struct {
	client   *rkeeper.Client
	store    *db.Store
	kafka    Notifier
	log      *logger.Logger
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewSyncer(client *rkeeper.Client, store *db.Store, kafka Notifier,
	log *logger.Logger, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Syncer{
		client:   client,
		store:    store,
		kafka:    kafka,
		log:      log,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Syncer) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Syncer) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.log.Error("SYNC", fmt.Sprintf("order resync failed: %v", err))
			}
		}
	}
}

// SyncOnce runs one resync pass. Exposed for the manual trigger endpoint.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	summaries, err := s.client.GetOrderList(ctx)
	if err != nil {
		return err
	}

	updated, cancelled, skipped := 0, 0, 0
	for _, summary := range summaries {
		order, err := s.store.GetOrderByIdent(ctx, summary.VisitID, summary.OrderIdent)
		if err != nil {
			return err
		}
		if order == nil {
			skipped++
			continue
		}
		if order.Status == models.OrderCancelled {
			continue
		}

		changed := false
		if summary.TableCode != "" && summary.TableCode != order.TableCode {
			order.TableCode = summary.TableCode
			changed = true
		}
		if summary.OrderSum != order.OrderTotal {
			order.OrderTotal = summary.OrderSum
			changed = true
		}

		// The listing's empty order rule mirrors webhook cancellation.
		if summary.TotalPieces == 0 {
			count, err := s.store.CountItems(ctx, order.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				now := time.Now().UTC()
				order.Status = models.OrderCancelled
				order.ClosedAt = &now
				if err := s.store.DeleteItems(ctx, order.ID); err != nil {
					return err
				}
				changed = true
				cancelled++
			}
		}

		if changed {
			order.UpdatedAt = time.Now().UTC()
			if err := s.store.UpdateOrder(ctx, order); err != nil {
				return err
			}
			updated++
			if order.Status == models.OrderCancelled {
				if err := s.kafka.PublishOrderStatus(order.ID, models.OrderCancelled, nil); err != nil {
					s.log.Error("KAFKA", fmt.Sprintf("Failed to publish order status: %v", err))
				}
			}
		}
	}

	s.log.Info("SYNC", fmt.Sprintf("resync: %d listed, %d updated, %d cancelled, %d unknown skipped",
		len(summaries), updated, cancelled, skipped))
	return nil
}
