package printing

import (
	"context"
	"fmt"
	"time"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	orderdb "ms-labeling/internal/order/db"
	printdb "ms-labeling/internal/printing/db"
)

// Notifier publishes job status transitions.
type Notifier interface {
	PublishJobStatus(jobID, status string, ctx map[string]interface{}) error
	PublishOrderStatus(orderID int64, status string, ctx map[string]interface{}) error
}

// Worker drains the print queue. Exactly one worker runs per service
// instance; the printer is a serial device and jobs must come out in
// arrival order.
type Worker struct {
	store     *printdb.Store
	orders    *orderdb.Store
	transport Transport
	notifier  Notifier
	log       *logger.Logger

	idlePoll        time.Duration
	shutdownTimeout time.Duration

	// sleepFn is swapped in tests so retry backoff does not slow them down.
	sleepFn func(ctx context.Context, d time.Duration)

	stop chan struct{}
	done chan struct{}
}

func NewWorker(store *printdb.Store, orders *orderdb.Store, transport Transport,
	notifier Notifier, log *logger.Logger, idlePoll, shutdownTimeout time.Duration) *Worker {
	if idlePoll <= 0 {
		idlePoll = 500 * time.Millisecond
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Worker{
		store:           store,
		orders:          orders,
		transport:       transport,
		notifier:        notifier,
		log:             log,
		idlePoll:        idlePoll,
		shutdownTimeout: shutdownTimeout,
		sleepFn:         sleepCtx,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Start launches the worker loop. It returns immediately.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop asks the loop to finish its current job and waits up to the shutdown
// timeout. A job mid-transport is allowed to complete; anything still QUEUED
// stays durable for the next start.
func (w *Worker) Stop() {
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(w.shutdownTimeout):
		w.log.LogPrinter("SHUTDOWN", "worker", "timed out waiting for current job")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	w.log.LogPrinter("START", "worker", "print queue worker running")

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.NextQueued(ctx)
		if err != nil {
			w.log.LogPrinter("DEQUEUE_ERROR", "worker", err.Error())
			w.sleepFn(ctx, w.idlePoll)
			continue
		}
		if job == nil {
			w.sleepFn(ctx, w.idlePoll)
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one delivery attempt and records its outcome. The PRINTING
// row hits the database before the first transport byte.
func (w *Worker) process(ctx context.Context, job *models.PrintJob) {
	if err := w.store.MarkPrinting(ctx, job.ID); err != nil {
		w.log.LogPrinter("STATE_ERROR", job.ID, err.Error())
		return
	}
	w.notifyJob(job, models.JobPrinting, nil)
	w.updateOrderStatus(ctx, job.OrderID, models.OrderPrinting)

	sendErr := w.transport.Send(job.Payload)
	if sendErr == nil {
		now := time.Now().UTC()
		if err := w.store.MarkDone(ctx, job.ID, now); err != nil {
			w.log.LogPrinter("STATE_ERROR", job.ID, err.Error())
			return
		}
		w.log.LogPrinter("PRINTED", job.ID,
			fmt.Sprintf("%s label for order %d", job.LabelType, job.OrderID))
		w.notifyJob(job, models.JobDone, nil)
		w.settleOrder(ctx, job.OrderID)
		return
	}

	retries := job.RetryCount + 1
	if retries >= job.MaxRetries {
		if err := w.store.MarkFailed(ctx, job.ID, retries, sendErr.Error()); err != nil {
			w.log.LogPrinter("STATE_ERROR", job.ID, err.Error())
			return
		}
		w.log.LogPrinter("FAILED", job.ID,
			fmt.Sprintf("gave up after %d attempts: %v", retries, sendErr))
		w.notifyJob(job, models.JobFailed, map[string]interface{}{"error": sendErr.Error()})
		w.updateOrderStatus(ctx, job.OrderID, models.OrderFailed)
		return
	}

	if err := w.store.MarkRetry(ctx, job.ID, retries, sendErr.Error()); err != nil {
		w.log.LogPrinter("STATE_ERROR", job.ID, err.Error())
		return
	}
	backoff := retryBackoff(retries)
	w.log.LogPrinter("RETRY", job.ID,
		fmt.Sprintf("attempt %d failed, next in %s: %v", retries, backoff, sendErr))
	w.notifyJob(job, models.JobQueued, map[string]interface{}{"error": sendErr.Error()})
	w.sleepFn(ctx, backoff)
}

// retryBackoff is exponential and capped at 30 seconds.
func retryBackoff(retryCount int) time.Duration {
	if retryCount > 5 {
		retryCount = 5
	}
	secs := 1 << retryCount
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// settleOrder moves the order to DONE once no live jobs remain and none
// failed. Test jobs carry order id 0 and are skipped.
func (w *Worker) settleOrder(ctx context.Context, orderID int64) {
	if orderID == 0 {
		return
	}
	jobs, err := w.store.ListJobsByOrder(ctx, orderID)
	if err != nil {
		w.log.LogPrinter("STATE_ERROR", fmt.Sprintf("order %d", orderID), err.Error())
		return
	}
	for _, j := range jobs {
		switch j.Status {
		case models.JobQueued, models.JobPrinting:
			return
		case models.JobFailed:
			w.updateOrderStatus(ctx, orderID, models.OrderFailed)
			return
		}
	}
	w.updateOrderStatus(ctx, orderID, models.OrderDone)
}

func (w *Worker) updateOrderStatus(ctx context.Context, orderID int64, status string) {
	if orderID == 0 {
		return
	}
	order, err := w.orders.GetOrderByID(ctx, orderID)
	if err != nil || order == nil {
		return
	}
	// Cancelled orders keep their status even if a stale job drains later.
	if order.Status == status || order.Status == models.OrderCancelled {
		return
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	if err := w.orders.UpdateOrder(ctx, order); err != nil {
		w.log.LogPrinter("STATE_ERROR", fmt.Sprintf("order %d", orderID), err.Error())
		return
	}
	if err := w.notifier.PublishOrderStatus(orderID, status, nil); err != nil {
		w.log.LogPrinter("NOTIFY_ERROR", fmt.Sprintf("order %d", orderID), err.Error())
	}
}

func (w *Worker) notifyJob(job *models.PrintJob, status string, extra map[string]interface{}) {
	evCtx := map[string]interface{}{
		"order_id":   job.OrderID,
		"label_type": job.LabelType,
	}
	for k, v := range extra {
		evCtx[k] = v
	}
	if err := w.notifier.PublishJobStatus(job.ID, status, evCtx); err != nil {
		w.log.LogPrinter("NOTIFY_ERROR", job.ID, err.Error())
	}
}
