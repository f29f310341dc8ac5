// Package bulk runs an operation over many items on a worker pool, persists
// its counters and streams progress to subscribers.
package bulk

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("bulk operation not found")
	ErrNotRunning = errors.New("bulk operation is not running")
	ErrNoItems    = errors.New("bulk operation has no items")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further progress will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Operation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    Status    `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Percent is the share of processed items, 0 to 100.
func (o Operation) Percent() int {
	if o.Total == 0 {
		if o.Status.Terminal() {
			return 100
		}
		return 0
	}
	return o.Processed * 100 / o.Total
}

// Progress is one event on a subscription. Item and Error describe the item
// that produced it; the final event of an operation carries neither.
type Progress struct {
	Operation Operation `json:"operation"`
	Percent   int       `json:"percent"`
	Item      string    `json:"item,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, op Operation) error
	Update(ctx context.Context, op Operation) error
	Get(ctx context.Context, id string) (Operation, error)
	List(ctx context.Context) ([]Operation, error)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
