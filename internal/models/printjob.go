package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Print job statuses. QUEUED is both the initial state and the retry
// re-entry state; FAILED is terminal.
const (
	JobQueued   = "QUEUED"
	JobPrinting = "PRINTING"
	JobDone     = "DONE"
	JobFailed   = "FAILED"
)

// Label types.
const (
	LabelMain  = "MAIN"
	LabelExtra = "EXTRA"
)

// DefaultMaxRetries bounds transport retries per job.
const DefaultMaxRetries = 3

// PrintJob is one physical label waiting in (or done with) the print queue.
// The payload is rendered once when the job is created; the worker only ships
// bytes. After insert, the queue worker is the only writer.
type PrintJob struct {
	bun.BaseModel `bun:"table:print_jobs"`

	ID          string `bun:"id,pk"`
	OrderID     int64  `bun:"order_id"`
	OrderItemID *int64 `bun:"order_item_id"`
	LabelType   string `bun:"label_type,notnull"`
	Payload     string `bun:"payload,notnull"`

	Status       string     `bun:"status,notnull,default:'QUEUED'"`
	RetryCount   int        `bun:"retry_count,notnull,default:0"`
	MaxRetries   int        `bun:"max_retries,notnull,default:3"`
	ErrorMessage string     `bun:"error_message"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	PrintedAt    *time.Time `bun:"printed_at"`
}
