package app

import (
	"time"

	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/shopspring/decimal"
)

// notConfigured is reported when the settings singleton has never been created.
const notConfigured = "lifecycle settings are not configured"

// GenerateResult describes one GenerateUpcoming run for a project.
// A non-empty ValidationErrors means nothing was changed.
type GenerateResult struct {
	ProjectID        int64
	Created          []*cycle.Cycle
	Skipped          int // due dates taken by a concurrent pass
	Failed           int
	ValidationErrors settings.ValidationErrors
}

// NoChanges reports whether the run left the project untouched.
func (r *GenerateResult) NoChanges() bool { return len(r.Created) == 0 }

type ArchiveResult struct {
	ProjectID        int64
	Archived         int
	Failed           int
	ValidationErrors settings.ValidationErrors
}

func (r *ArchiveResult) NoChanges() bool { return r.Archived == 0 }

// ReminderResult counts per-recipient reminder tasks of one ProcessReminders run.
type ReminderResult struct {
	ProjectID        int64
	Dispatched       int
	Deduplicated     int // already dispatched today
	Suppressed       int // held back by the project's reminder override
	Failed           int
	ByTier           map[reminder.Tier]int
	ValidationErrors settings.ValidationErrors
}

func (r *ReminderResult) NoChanges() bool { return r.Dispatched == 0 }

// Statistics is a read-only summary of a project's cycles.
type Statistics struct {
	ProjectID         int64
	Total             int
	Archived          int
	Active            int
	Paid              int
	Partial           int
	Unpaid            int
	DueSoon           int
	Overdue           int
	Outstanding       decimal.Decimal
	LatestDueDate     *time.Time
	GenerationEndDate time.Time
	ArchiveCutoffDate time.Time
	ValidationErrors  settings.ValidationErrors
}

// ConfigResult is returned by AdminService.UpdateConfig. On validation failure Config
// holds the unchanged settings (nil when none exist yet).
type ConfigResult struct {
	Config           *settings.Config
	Created          bool
	ValidationErrors settings.ValidationErrors
}

// CreateCycleResult is returned by AdminService.CreateCycle. Created is false when the
// date is outside the generation window or already has a cycle.
type CreateCycleResult struct {
	Cycle            *cycle.Cycle
	Created          bool
	ValidationErrors settings.ValidationErrors
}
