package printing

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-labeling/internal/logger"
	"ms-labeling/internal/models"
	orderdb "ms-labeling/internal/order/db"
	printdb "ms-labeling/internal/printing/db"
)

type flakyTransport struct {
	failures int
	sent     []string
}

func (f *flakyTransport) Send(payload string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("printer offline")
	}
	f.sent = append(f.sent, payload)
	return nil
}

type recordingNotifier struct {
	jobStatuses   []string
	orderStatuses []string
}

func (r *recordingNotifier) PublishJobStatus(_ string, status string, _ map[string]interface{}) error {
	r.jobStatuses = append(r.jobStatuses, status)
	return nil
}

func (r *recordingNotifier) PublishOrderStatus(_ int64, status string, _ map[string]interface{}) error {
	r.orderStatuses = append(r.orderStatuses, status)
	return nil
}

func setupWorker(t *testing.T, transport Transport) (*Worker, *printdb.Store, *orderdb.Store, *recordingNotifier, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, orderdb.CreateTables(ctx, bunDB))
	require.NoError(t, printdb.CreateTables(ctx, bunDB))

	printStore := printdb.NewStore(bunDB)
	orderStore := orderdb.NewStore(bunDB)
	notifier := &recordingNotifier{}

	w := NewWorker(printStore, orderStore, transport, notifier, logger.NewLogger(),
		10*time.Millisecond, time.Second)
	w.sleepFn = func(context.Context, time.Duration) {}
	return w, printStore, orderStore, notifier, bunDB
}

func seedOrderWithJob(t *testing.T, orderStore *orderdb.Store, printStore *printdb.Store) *models.PrintJob {
	ctx := context.Background()
	ord := &models.Order{
		VisitID:    "17",
		OrderIdent: "3",
		TableCode:  "12",
		Status:     models.OrderNotPrinted,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, orderStore.CreateOrder(ctx, ord))

	job := &models.PrintJob{
		ID:         uuid.New().String(),
		OrderID:    ord.ID,
		LabelType:  models.LabelMain,
		Payload:    "SIZE 58 mm, 40 mm\nCLS\nPRINT 1",
		Status:     models.JobQueued,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, printStore.CreateJobs(ctx, []*models.PrintJob{job}))
	return job
}

func TestWorkerPrintsJob(t *testing.T) {
	transport := &flakyTransport{}
	w, printStore, orderStore, notifier, bunDB := setupWorker(t, transport)
	defer bunDB.Close()
	ctx := context.Background()

	seeded := seedOrderWithJob(t, orderStore, printStore)

	job, err := printStore.NextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	w.process(ctx, job)

	done, err := printStore.GetJob(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, done.Status)
	assert.NotNil(t, done.PrintedAt)
	assert.Equal(t, 0, done.RetryCount)
	require.Len(t, transport.sent, 1)

	ord, err := orderStore.GetOrderByID(ctx, seeded.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDone, ord.Status)

	assert.Equal(t, []string{models.JobPrinting, models.JobDone}, notifier.jobStatuses)
	assert.Equal(t, []string{models.OrderPrinting, models.OrderDone}, notifier.orderStatuses)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	transport := &flakyTransport{failures: 1}
	w, printStore, orderStore, notifier, bunDB := setupWorker(t, transport)
	defer bunDB.Close()
	ctx := context.Background()

	seeded := seedOrderWithJob(t, orderStore, printStore)

	// First attempt fails and goes back to the queue.
	job, err := printStore.NextQueued(ctx)
	require.NoError(t, err)
	w.process(ctx, job)

	queued, err := printStore.GetJob(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, queued.Status)
	assert.Equal(t, 1, queued.RetryCount)
	assert.Equal(t, "printer offline", queued.ErrorMessage)

	// The re-entry to the queue is published like every other transition.
	assert.Equal(t, []string{models.JobPrinting, models.JobQueued}, notifier.jobStatuses)

	// Second attempt succeeds; the retry count is kept as history.
	job, err = printStore.NextQueued(ctx)
	require.NoError(t, err)
	w.process(ctx, job)

	done, err := printStore.GetJob(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, done.Status)
	assert.Equal(t, 1, done.RetryCount)
	assert.Empty(t, done.ErrorMessage)
	assert.Equal(t, []string{
		models.JobPrinting, models.JobQueued, models.JobPrinting, models.JobDone,
	}, notifier.jobStatuses)
}

func TestWorkerFailsAfterMaxRetries(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	w, printStore, orderStore, notifier, bunDB := setupWorker(t, transport)
	defer bunDB.Close()
	ctx := context.Background()

	seeded := seedOrderWithJob(t, orderStore, printStore)

	for attempt := 0; attempt < models.DefaultMaxRetries; attempt++ {
		job, err := printStore.NextQueued(ctx)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", attempt)
		w.process(ctx, job)
	}

	failed, err := printStore.GetJob(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Equal(t, models.DefaultMaxRetries, failed.RetryCount)
	assert.Equal(t, "printer offline", failed.ErrorMessage)

	// FAILED is terminal: nothing left to dequeue.
	job, err := printStore.NextQueued(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	ord, err := orderStore.GetOrderByID(ctx, seeded.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, ord.Status)
	assert.Contains(t, notifier.jobStatuses, models.JobFailed)
}

func TestWorkerRequeueAfterFailure(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	w, printStore, orderStore, _, bunDB := setupWorker(t, transport)
	defer bunDB.Close()
	ctx := context.Background()

	seeded := seedOrderWithJob(t, orderStore, printStore)
	for attempt := 0; attempt < models.DefaultMaxRetries; attempt++ {
		job, err := printStore.NextQueued(ctx)
		require.NoError(t, err)
		w.process(ctx, job)
	}

	requeued, err := printStore.Requeue(ctx, seeded.ID)
	require.NoError(t, err)
	assert.True(t, requeued)

	// The printer is back; the job prints on the fresh attempt round.
	transport.failures = 0
	job, err := printStore.NextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 0, job.RetryCount)
	w.process(ctx, job)

	done, err := printStore.GetJob(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, done.Status)
}

func TestRetryBackoffCapped(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryBackoff(1))
	assert.Equal(t, 4*time.Second, retryBackoff(2))
	assert.Equal(t, 8*time.Second, retryBackoff(3))
	assert.Equal(t, 30*time.Second, retryBackoff(5))
	assert.Equal(t, 30*time.Second, retryBackoff(20))
}

func TestWorkerFIFOOrder(t *testing.T) {
	transport := &flakyTransport{}
	w, printStore, orderStore, _, bunDB := setupWorker(t, transport)
	defer bunDB.Close()
	ctx := context.Background()

	ord := &models.Order{VisitID: "1", OrderIdent: "1", Status: models.OrderNotPrinted, CreatedAt: time.Now()}
	require.NoError(t, orderStore.CreateOrder(ctx, ord))

	base := time.Now().UTC()
	var jobs []*models.PrintJob
	for i := 0; i < 3; i++ {
		jobs = append(jobs, &models.PrintJob{
			ID:         uuid.New().String(),
			OrderID:    ord.ID,
			LabelType:  models.LabelMain,
			Payload:    string(rune('A' + i)),
			Status:     models.JobQueued,
			MaxRetries: models.DefaultMaxRetries,
			CreatedAt:  base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	require.NoError(t, printStore.CreateJobs(ctx, jobs))

	for i := 0; i < 3; i++ {
		job, err := printStore.NextQueued(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		w.process(ctx, job)
	}

	assert.Equal(t, []string{"A", "B", "C"}, transport.sent)
}

func TestRetryBackoffOverflowGuard(t *testing.T) {
	// Large retry counts must not wrap the shift into a negative duration.
	assert.Equal(t, 30*time.Second, retryBackoff(40))
}
