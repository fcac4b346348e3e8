package queue

import (
	"context"
	"errors"
	"time"

	"billing_cycle_bot/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

// Delivery outcomes reported to the DeliveryRecorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried"
	OutcomeDead      = "dead"
)

const defaultPollWait = 2 * time.Second

// DeliveryRecorder counts what happened to each delivery attempt.
type DeliveryRecorder interface {
	DeliveryOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) DeliveryOutcome(string) {}

// Worker delivers queued reminder tasks one at a time. A failed task goes back to the
// queue until it has failed maxAttempts times, then it is dead-lettered.
type Worker struct {
	queue       *RedisQueue
	deliverer   reminder.Deliverer
	maxAttempts int
	recorder    DeliveryRecorder
	pollWait    time.Duration
	log         *logrus.Entry
}

func NewWorker(q *RedisQueue, d reminder.Deliverer, maxAttempts int, recorder DeliveryRecorder, log *logrus.Entry) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Worker{
		queue:       q,
		deliverer:   d,
		maxAttempts: maxAttempts,
		recorder:    recorder,
		pollWait:    defaultPollWait,
		log:         log.WithField("component", "reminder_worker"),
	}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Reminder worker started")
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("Reminder worker stopped")
			return nil
		}
		if _, err := w.ProcessNext(ctx, w.pollWait); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Errorf("Error processing reminder task: %v", err)
			if !errors.Is(err, ErrMalformedTask) {
				// Back off on queue errors so a Redis outage does not spin.
				select {
				case <-ctx.Done():
				case <-time.After(w.pollWait):
				}
			}
		}
	}
}

// ProcessNext pops and delivers one task. It reports false when there was nothing to do.
func (w *Worker) ProcessNext(ctx context.Context, wait time.Duration) (bool, error) {
	t, err := w.queue.Pop(ctx, wait)
	if err != nil || t == nil {
		return false, err
	}

	log := w.log.WithFields(logrus.Fields{
		"task_id":    t.ID,
		"project_id": t.ProjectID,
		"cycle_id":   t.CycleID,
		"member_id":  t.MemberID,
		"tier":       t.Tier,
	})

	deliverErr := w.deliverer.Deliver(ctx, t)
	if deliverErr == nil {
		log.Debug("Reminder delivered")
		w.recorder.DeliveryOutcome(OutcomeDelivered)
		return true, nil
	}

	t.Attempts++
	t.LastError = deliverErr.Error()
	if t.Attempts >= w.maxAttempts || errors.Is(deliverErr, reminder.ErrUndeliverable) {
		log.Errorf("Reminder dropped after %d attempt(s): %v", t.Attempts, deliverErr)
		w.recorder.DeliveryOutcome(OutcomeDead)
		return true, w.queue.DeadLetter(ctx, t)
	}
	log.Warnf("Reminder delivery failed (attempt %d of %d): %v", t.Attempts, w.maxAttempts, deliverErr)
	w.recorder.DeliveryOutcome(OutcomeRetried)
	return true, w.queue.Retry(ctx, t)
}
