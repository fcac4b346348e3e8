package policy

import (
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/settings"
)

// RetentionDays is how far back an archived cycle may still be unarchived.
const RetentionDays = 365

// ArchivePolicy decides which cycles may be retired.
type ArchivePolicy struct {
	cfg *settings.Config
	at  Moment
}

func NewArchivePolicy(cfg *settings.Config, at Moment) *ArchivePolicy {
	return &ArchivePolicy{cfg: cfg, at: at}
}

// CutoffDate is today minus the archiving threshold. Only cycles due strictly
// before it are candidates.
func (p *ArchivePolicy) CutoffDate() time.Time {
	return calendar.AddMonths(p.at.Today, -p.cfg.ArchivingThresholdMonths)
}

// graceBoundary is the day an unpaid cycle must be due before to count as abandoned.
func (p *ArchivePolicy) graceBoundary() time.Time {
	return calendar.AddDays(p.at.Today, -p.cfg.GracePeriodDays)
}

// ShouldArchiveCycle reports whether c is old enough and safe to retire: it must be
// fully paid, or overdue past the grace period so no collection is still under way.
func (p *ArchivePolicy) ShouldArchiveCycle(c *cycle.Cycle) bool {
	if !p.cfg.AutoArchive || c.Archived {
		return false
	}
	if !c.DueDate.Before(p.CutoffDate()) {
		return false
	}
	return c.FullyPaid() || c.DueDate.Before(p.graceBoundary())
}

// ArchiveEligible filters a project's cycles down to those ShouldArchiveCycle accepts.
func (p *ArchivePolicy) ArchiveEligible(cycles []*cycle.Cycle) []*cycle.Cycle {
	cutoff := p.CutoffDate()
	var eligible []*cycle.Cycle
	for _, c := range cycles {
		if c.Archived || !c.DueDate.Before(cutoff) {
			continue
		}
		if p.ShouldArchiveCycle(c) {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// Archive marks an eligible cycle archived as part of a pass.
func (p *ArchivePolicy) Archive(c *cycle.Cycle) bool {
	if !p.ShouldArchiveCycle(c) {
		return false
	}
	c.MarkArchived(p.at.Now, "archived automatically")
	return true
}

// ForceArchive archives c without the safety check. Already archived cycles are refused.
func (p *ArchivePolicy) ForceArchive(c *cycle.Cycle, reason string) bool {
	if c.Archived {
		return false
	}
	c.MarkArchived(p.at.Now, reason)
	return true
}

// CanUnarchive is true for archived cycles due no more than RetentionDays ago.
func (p *ArchivePolicy) CanUnarchive(c *cycle.Cycle) bool {
	if !c.Archived {
		return false
	}
	return calendar.DaysBetween(c.DueDate, p.at.Today) <= RetentionDays
}

// Unarchive reverts an archive within the retention window; otherwise it does nothing.
func (p *ArchivePolicy) Unarchive(c *cycle.Cycle, reason string) bool {
	if !p.CanUnarchive(c) {
		return false
	}
	c.ClearArchived(reason)
	return true
}
