package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-labeling/internal/models"
)

// Store holds the print queue and label templates. The queue is strict FIFO
// on created_at; nothing here reorders or prioritizes jobs.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// ---------------- PRINT JOBS ----------------

// CreateJobs inserts a batch of rendered jobs in one statement.
func (s *Store) CreateJobs(ctx context.Context, jobs []*models.PrintJob) error {
	if len(jobs) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&jobs).
		Exec(ctx)
	return err
}

// NextQueued → the oldest QUEUED job, or nil when the queue is idle.
func (s *Store) NextQueued(ctx context.Context) (*models.PrintJob, error) {
	var job models.PrintJob
	err := s.db.NewSelect().
		Model(&job).
		Where("status = ?", models.JobQueued).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.PrintJob, error) {
	var job models.PrintJob
	err := s.db.NewSelect().
		Model(&job).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, status string, limit int) ([]models.PrintJob, error) {
	if limit <= 0 {
		limit = 100
	}
	var jobs []models.PrintJob
	q := s.db.NewSelect().
		Model(&jobs).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) ListJobsByOrder(ctx context.Context, orderID int64) ([]models.PrintJob, error) {
	var jobs []models.PrintJob
	err := s.db.NewSelect().
		Model(&jobs).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkPrinting records that the worker picked the job up. The row is updated
// before the first transport byte so a crash mid-send leaves evidence.
func (s *Store) MarkPrinting(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*models.PrintJob)(nil)).
		Set("status = ?", models.JobPrinting).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) MarkDone(ctx context.Context, id string, printedAt time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*models.PrintJob)(nil)).
		Set("status = ?", models.JobDone).
		Set("printed_at = ?", printedAt).
		Set("error_message = ?", "").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkRetry puts a failed attempt back in the queue with the attempt counted.
func (s *Store) MarkRetry(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*models.PrintJob)(nil)).
		Set("status = ?", models.JobQueued).
		Set("retry_count = ?", retryCount).
		Set("error_message = ?", errMsg).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkFailed is the terminal transition. The job stays in the table for
// inspection and manual requeue.
func (s *Store) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*models.PrintJob)(nil)).
		Set("status = ?", models.JobFailed).
		Set("retry_count = ?", retryCount).
		Set("error_message = ?", errMsg).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Requeue resets a FAILED job for another full round of attempts. Operator
// action, not part of the automatic retry path.
func (s *Store) Requeue(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.PrintJob)(nil)).
		Set("status = ?", models.JobQueued).
		Set("retry_count = 0").
		Set("error_message = ?", "").
		Where("id = ?", id).
		Where("status = ?", models.JobFailed).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------- TEMPLATES ----------------

func (s *Store) GetDefaultTemplate(ctx context.Context) (*models.LabelTemplate, error) {
	var tpl models.LabelTemplate
	err := s.db.NewSelect().
		Model(&tpl).
		Where("is_default = ?", true).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) GetTemplate(ctx context.Context, id int64) (*models.LabelTemplate, error) {
	var tpl models.LabelTemplate
	err := s.db.NewSelect().
		Model(&tpl).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) SaveTemplate(ctx context.Context, tpl *models.LabelTemplate) error {
	if tpl.ID == 0 {
		_, err := s.db.NewInsert().
			Model(tpl).
			Returning("id").
			Exec(ctx)
		return err
	}
	tpl.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model(tpl).
		Column("name", "brand_id", "is_default", "config", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// CreateTables provisions the printing schema for tests and first runs.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.PrintJob)(nil),
		(*models.LabelTemplate)(nil),
	} {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
