package queue

import (
	"context"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/reminder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InlineDispatcher delivers each task as soon as it is enqueued. One-off CLI runs use
// it when no Redis is configured; scheduling requests are only logged since nothing
// would drain them.
type InlineDispatcher struct {
	deliverer reminder.Deliverer
	log       *logrus.Entry
}

func NewInlineDispatcher(d reminder.Deliverer, log *logrus.Entry) *InlineDispatcher {
	return &InlineDispatcher{deliverer: d, log: log.WithField("component", "inline_dispatcher")}
}

var _ reminder.Dispatcher = (*InlineDispatcher)(nil)

func (d *InlineDispatcher) Enqueue(ctx context.Context, t *reminder.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := d.deliverer.Deliver(ctx, t); err != nil {
		return fmt.Errorf("inline delivery failed: %w", err)
	}
	return nil
}

func (d *InlineDispatcher) Schedule(ctx context.Context, projectID, cycleID int64, at time.Time) error {
	d.log.WithFields(logrus.Fields{"project_id": projectID, "cycle_id": cycleID}).
		Debugf("Reminder evaluation due at %s not scheduled without a queue", at.Format(time.RFC3339))
	return nil
}
