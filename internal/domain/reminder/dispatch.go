package reminder

import (
	"context"
	"errors"
	"time"
)

// ErrUndeliverable marks a delivery failure that retrying cannot fix.
var ErrUndeliverable = errors.New("reminder cannot be delivered")

// Task is one reminder addressed to one member. Tasks are delivered independently
// and may be retried.
type Task struct {
	ID         string    `json:"id"`
	ProjectID  int64     `json:"project_id"`
	CycleID    int64     `json:"cycle_id"`
	Tier       Tier      `json:"tier"`
	MemberID   int64     `json:"member_id"`
	ChatID     int64     `json:"chat_id"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Dispatcher hands reminders to the delivery side.
type Dispatcher interface {
	// Enqueue queues a per-recipient reminder task.
	Enqueue(ctx context.Context, t *Task) error
	// Schedule asks for the project's reminders to be evaluated again at the given time,
	// typically the next reminder date of a freshly generated cycle.
	Schedule(ctx context.Context, projectID, cycleID int64, at time.Time) error
}

// Deliverer sends a task's message over a concrete channel (chat, email, push).
type Deliverer interface {
	Deliver(ctx context.Context, t *Task) error
}
