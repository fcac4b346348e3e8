package cycle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCycleNotFound = errors.New("billing cycle not found")
	// ErrDuplicateDueDate is returned when (project_id, due_date) already exists.
	ErrDuplicateDueDate = errors.New("billing cycle already exists for this due date")
)

// Repository defines persistence for billing cycles and their payments.
type Repository interface {
	// Create inserts a cycle. The (project_id, due_date) uniqueness is enforced by
	// the store and reported as ErrDuplicateDueDate.
	Create(ctx context.Context, c *Cycle) error
	GetByID(ctx context.Context, id int64) (*Cycle, error) // payments loaded
	// ListByProject returns cycles ordered by due date with payments loaded.
	ListByProject(ctx context.Context, projectID int64, includeArchived bool) ([]*Cycle, error)
	// Latest returns the cycle with the greatest due date, or ErrCycleNotFound.
	Latest(ctx context.Context, projectID int64) (*Cycle, error)
	// ListDueDatesFrom returns the due dates on or after from, archived cycles included.
	ListDueDatesFrom(ctx context.Context, projectID int64, from time.Time) ([]time.Time, error)
	UpdateArchiveState(ctx context.Context, c *Cycle) error
	// UpdateAdjustment persists amount/due date corrections; a due date clash is
	// reported as ErrDuplicateDueDate.
	UpdateAdjustment(ctx context.Context, c *Cycle) error
}
