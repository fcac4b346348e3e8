package policy

import (
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/settings"
)

// MaxGenerationIterations bounds a MissingCycles walk for frequencies without a
// bound of their own.
const MaxGenerationIterations = 100

// maxCatchUpSteps bounds the walk from a stale anchor up to today.
const maxCatchUpSteps = 5000

// maxStepsPerPass is the most due dates the longest allowed horizon can hold for a
// frequency, counting today. A walk never stops short of the horizon end, so a second
// pass on the same day finds nothing to create.
var maxStepsPerPass = map[project.Frequency]int{
	project.FrequencyDaily:     367,
	project.FrequencyWeekly:    54,
	project.FrequencyMonthly:   13,
	project.FrequencyQuarterly: 5,
	project.FrequencyYearly:    2,
}

func stepLimit(f project.Frequency) int {
	if limit, ok := maxStepsPerPass[f]; ok {
		return limit
	}
	return MaxGenerationIterations
}

// GenerationPolicy decides which cycles a project is missing within the horizon.
type GenerationPolicy struct {
	cfg *settings.Config
	at  Moment
}

func NewGenerationPolicy(cfg *settings.Config, at Moment) *GenerationPolicy {
	return &GenerationPolicy{cfg: cfg, at: at}
}

// ShouldGenerate is true iff auto-generation is on, the project's frequency is
// supported and its cost is positive.
func (p *GenerationPolicy) ShouldGenerate(pr *project.Project) bool {
	return p.cfg.AutoGenerate && p.cfg.Supports(pr.Frequency) && pr.Cost.IsPositive()
}

// GenerationEndDate is today plus the generation horizon.
func (p *GenerationPolicy) GenerationEndDate() time.Time {
	return calendar.AddMonths(p.at.Today, p.cfg.GenerationHorizonMonths)
}

// NextDueDate steps one period forward. Unknown frequencies step one month.
func NextDueDate(from time.Time, f project.Frequency) time.Time {
	switch f {
	case project.FrequencyDaily:
		return calendar.AddDays(from, 1)
	case project.FrequencyWeekly:
		return calendar.AddDays(from, 7)
	case project.FrequencyMonthly:
		return calendar.AddMonths(from, 1)
	case project.FrequencyQuarterly:
		return calendar.AddMonths(from, 3)
	case project.FrequencyYearly:
		return calendar.AddMonths(from, 12)
	default:
		return calendar.AddMonths(from, 1)
	}
}

// MissingCycles returns drafts for every due date between today and the generation
// end date that has no cycle yet. The walk starts at the period after latest, or at
// the project's renewal date when it has no cycles, and skips periods before today.
// A project that should not generate yields no drafts.
func (p *GenerationPolicy) MissingCycles(pr *project.Project, latest *cycle.Cycle, existing cycle.DueDates) []cycle.Draft {
	if !p.ShouldGenerate(pr) {
		return nil
	}

	candidate := calendar.Day(pr.RenewalDate)
	if latest != nil {
		candidate = NextDueDate(latest.DueDate, pr.Frequency)
	}
	candidate = p.catchUp(candidate, pr.Frequency)

	limit := stepLimit(pr.Frequency)
	end := p.GenerationEndDate()
	var drafts []cycle.Draft
	for i := 0; i < limit && !candidate.After(end); i++ {
		if !existing.Has(candidate) {
			drafts = append(drafts, cycle.Draft{
				ProjectID: pr.ID,
				DueDate:   candidate,
				Amount:    pr.Cost,
			})
		}
		candidate = NextDueDate(candidate, pr.Frequency)
	}
	return drafts
}

// NeedsCycleForDate reports whether date lies within [today, end date] and has no cycle.
func (p *GenerationPolicy) NeedsCycleForDate(date time.Time, existing cycle.DueDates) bool {
	date = calendar.Day(date)
	if date.Before(p.at.Today) || date.After(p.GenerationEndDate()) {
		return false
	}
	return !existing.Has(date)
}

// catchUp advances d by whole periods until it is not before today, keeping the
// schedule's phase. A pathological gap falls back to today.
func (p *GenerationPolicy) catchUp(d time.Time, f project.Frequency) time.Time {
	for i := 0; d.Before(p.at.Today); i++ {
		if i >= maxCatchUpSteps {
			return p.at.Today
		}
		d = NextDueDate(d, f)
	}
	return d
}
