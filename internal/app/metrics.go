package app

import (
	"time"

	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
)

// MetricsRecorder receives lifecycle events for observability.
type MetricsRecorder interface {
	CycleGenerated(f project.Frequency)
	CycleArchived()
	ReminderDispatched(t reminder.Tier)
	ReminderDeduplicated()
	Failure(op Operation)
	ObservePass(op Operation, d time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) CycleGenerated(project.Frequency) {}
func (NoopMetrics) CycleArchived() {}
func (NoopMetrics) ReminderDispatched(reminder.Tier) {}
func (NoopMetrics) ReminderDeduplicated() {}
func (NoopMetrics) Failure(Operation) {}
func (NoopMetrics) ObservePass(Operation, time.Duration) {}
