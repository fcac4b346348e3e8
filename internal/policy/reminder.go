package policy

import (
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/shopspring/decimal"
)

// resendIntervalDays is the minimum gap between two sends of the same tier for a cycle.
var resendIntervalDays = map[reminder.Tier]int{
	reminder.TierGentle:   2,
	reminder.TierStandard: 1,
	reminder.TierUrgent:   1,
	reminder.TierFinal:    3,
}

// Reminder is everything needed to notify a cycle's unpaid members.
type Reminder struct {
	Tier            reminder.Tier
	Urgency         int
	DaysUntilDue    int
	DaysOverdue     int
	AmountRemaining decimal.Decimal
	AmountPerMember decimal.Decimal
	Recipients      []*project.Member
	Message         string
}

// ReminderPolicy classifies cycles into escalation tiers and decides who gets reminded.
type ReminderPolicy struct {
	cfg     *settings.Config
	at      Moment
	history reminder.History
}

// NewReminderPolicy builds a policy; a nil history behaves as reminder.NoHistory.
func NewReminderPolicy(cfg *settings.Config, at Moment, history reminder.History) *ReminderPolicy {
	if history == nil {
		history = reminder.NoHistory{}
	}
	return &ReminderPolicy{cfg: cfg, at: at, history: history}
}

// TierFor classifies c by its distance to the due date. Overdue thresholds are
// checked from the most severe down. A cycle is overdue only from the day after its
// due date, so a zero overdue offset never escalates a cycle due today.
func (p *ReminderPolicy) TierFor(c *cycle.Cycle) reminder.Tier {
	off := p.cfg.Reminders
	overdue := c.DaysOverdue(p.at.Today)
	until := c.DaysUntilDue(p.at.Today)

	switch {
	case overdue > 0 && overdue >= off.FinalDaysOverdue:
		return reminder.TierFinal
	case overdue > 0 && overdue >= off.UrgentDaysOverdue:
		return reminder.TierUrgent
	case overdue > 0 && overdue >= off.StandardDaysOverdue:
		return reminder.TierStandard
	case until >= 0 && until <= off.GentleDaysBefore:
		return reminder.TierGentle
	default:
		return reminder.TierNone
	}
}

// RecentlyReminded reports whether tier was sent for c within its resend interval.
func (p *ReminderPolicy) RecentlyReminded(c *cycle.Cycle, tier reminder.Tier) bool {
	last, ok := p.history.LastSent(c.ID, tier)
	return ok && p.withinResendInterval(last, tier)
}

// RecentlyRemindedMember is RecentlyReminded for a single member. Histories that do
// not track members answer for the whole cycle.
func (p *ReminderPolicy) RecentlyRemindedMember(c *cycle.Cycle, tier reminder.Tier, memberID int64) bool {
	mh, ok := p.history.(reminder.MemberHistory)
	if !ok {
		return p.RecentlyReminded(c, tier)
	}
	last, ok := mh.LastSentTo(c.ID, tier, memberID)
	return ok && p.withinResendInterval(last, tier)
}

func (p *ReminderPolicy) withinResendInterval(last time.Time, tier reminder.Tier) bool {
	return calendar.DaysBetween(last, p.at.Today) < resendIntervalDays[tier]
}

// ShouldSend reports whether a reminder for c is due now.
func (p *ReminderPolicy) ShouldSend(c *cycle.Cycle, pr *project.Project) bool {
	if !p.cfg.RemindersEnabled || c.Archived || c.FullyPaid() {
		return false
	}
	tier := p.TierFor(c)
	if tier == reminder.TierNone {
		return false
	}
	return len(p.recipients(c, pr, tier)) > 0
}

// ReminderData bundles the tier, timing, recipients and message for c.
// Recipients are the members who have not paid, have not unsubscribed and were not
// sent this tier within its resend interval.
func (p *ReminderPolicy) ReminderData(c *cycle.Cycle, pr *project.Project) *Reminder {
	tier := p.TierFor(c)
	r := &Reminder{
		Tier:            tier,
		Urgency:         tier.Rank(),
		DaysUntilDue:    c.DaysUntilDue(p.at.Today),
		DaysOverdue:     c.DaysOverdue(p.at.Today),
		AmountRemaining: c.AmountRemaining(),
		AmountPerMember: pr.CostPerMember(),
	}
	r.Recipients = p.recipients(c, pr, tier)
	r.Message = renderMessage(r, c, pr)
	return r
}

func (p *ReminderPolicy) recipients(c *cycle.Cycle, pr *project.Project, tier reminder.Tier) []*project.Member {
	var out []*project.Member
	for _, m := range pr.Members {
		if c.HasMemberPaid(m.ID) || pr.IsUnsubscribed(m.ID) {
			continue
		}
		if tier != reminder.TierNone && p.RecentlyRemindedMember(c, tier, m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// NextReminderDate is the first day after today on which c reaches a higher tier
// than it has now. There is nothing after final.
func (p *ReminderPolicy) NextReminderDate(c *cycle.Cycle) (time.Time, bool) {
	current := p.TierFor(c).Rank()
	for _, tier := range reminder.Tiers[current:] {
		if d := p.triggerDate(c, tier); d.After(p.at.Today) {
			return d, true
		}
	}
	return time.Time{}, false
}

func (p *ReminderPolicy) triggerDate(c *cycle.Cycle, tier reminder.Tier) time.Time {
	off := p.cfg.Reminders
	switch tier {
	case reminder.TierGentle:
		return calendar.AddDays(c.DueDate, -off.GentleDaysBefore)
	case reminder.TierStandard:
		return calendar.AddDays(c.DueDate, off.StandardDaysOverdue)
	case reminder.TierUrgent:
		return calendar.AddDays(c.DueDate, off.UrgentDaysOverdue)
	default:
		return calendar.AddDays(c.DueDate, off.FinalDaysOverdue)
	}
}

// ValidateRules checks that overdue offsets never decrease with severity; otherwise
// the escalation order is undefined.
func (p *ReminderPolicy) ValidateRules() settings.ValidationErrors {
	off := p.cfg.Reminders
	var errs settings.ValidationErrors
	if off.StandardDaysOverdue > off.UrgentDaysOverdue {
		errs = append(errs, fmt.Sprintf("standard reminder offset (%d days overdue) must not exceed the urgent offset (%d days overdue)",
			off.StandardDaysOverdue, off.UrgentDaysOverdue))
	}
	if off.UrgentDaysOverdue > off.FinalDaysOverdue {
		errs = append(errs, fmt.Sprintf("urgent reminder offset (%d days overdue) must not exceed the final offset (%d days overdue)",
			off.UrgentDaysOverdue, off.FinalDaysOverdue))
	}
	return errs
}

func renderMessage(r *Reminder, c *cycle.Cycle, pr *project.Project) string {
	share := fmt.Sprintf("%s %s", r.AmountPerMember.StringFixed(2), pr.Currency)
	due := calendar.Format(c.DueDate)

	switch r.Tier {
	case reminder.TierGentle:
		if r.DaysUntilDue == 0 {
			return fmt.Sprintf("Hi! Your share of %s (%s) is due today.", pr.Name, share)
		}
		return fmt.Sprintf("Hi! Friendly heads-up: your share of %s (%s) is due in %d day(s), on %s.",
			pr.Name, share, r.DaysUntilDue, due)
	case reminder.TierStandard:
		return fmt.Sprintf("Reminder: your share of %s (%s) was due on %s and is %d day(s) overdue.",
			pr.Name, share, due, r.DaysOverdue)
	case reminder.TierUrgent:
		return fmt.Sprintf("Urgent: your share of %s (%s) is %d day(s) overdue. Please pay as soon as possible.",
			pr.Name, share, r.DaysOverdue)
	case reminder.TierFinal:
		return fmt.Sprintf("Final notice: your share of %s (%s), due on %s, is %d day(s) overdue. No further automatic reminders will be sent.",
			pr.Name, share, due, r.DaysOverdue)
	default:
		return ""
	}
}
