package cycle

import (
	"database/sql"
	"time"

	"billing_cycle_bot/internal/domain/calendar"

	"github.com/shopspring/decimal"
)

// Status is the derived payment state of a cycle. It is never stored.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Cycle is one billing period of a project.
// Corresponds to the 'billing_cycles' table; (project_id, due_date) is unique.
type Cycle struct {
	ID          int64
	ProjectID   int64
	DueDate     time.Time
	TotalAmount decimal.Decimal

	Archived      bool
	ArchivedAt    sql.NullTime
	ArchiveReason sql.NullString

	// Adjustment metadata for manual corrections. Originals keep the values
	// from before the first adjustment.
	OriginalAmount   decimal.NullDecimal
	OriginalDueDate  sql.NullTime
	AdjustmentReason sql.NullString
	AdjustedAt       sql.NullTime

	Payments  []*Payment
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft is a cycle the generation policy wants to exist but which is not persisted yet.
type Draft struct {
	ProjectID int64
	DueDate   time.Time
	Amount    decimal.Decimal
}

// AmountPaid sums the payments that count towards the cycle.
func (c *Cycle) AmountPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Payments {
		if p.Status.Counts() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// AmountRemaining is max(total - paid, 0).
func (c *Cycle) AmountRemaining() decimal.Decimal {
	remaining := c.TotalAmount.Sub(c.AmountPaid())
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// FullyPaid reports whether nothing remains to be collected.
func (c *Cycle) FullyPaid() bool {
	return c.AmountRemaining().IsZero()
}

func (c *Cycle) Status() Status {
	switch {
	case c.FullyPaid():
		return StatusPaid
	case c.AmountPaid().IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// HasMemberPaid reports whether memberID has a counted payment on this cycle.
func (c *Cycle) HasMemberPaid(memberID int64) bool {
	for _, p := range c.Payments {
		if p.MemberID == memberID && p.Status.Counts() {
			return true
		}
	}
	return false
}

// IsAdjusted reports whether the cycle was manually corrected.
func (c *Cycle) IsAdjusted() bool {
	return c.AdjustedAt.Valid
}

// DaysUntilDue is negative once the due date has passed.
func (c *Cycle) DaysUntilDue(today time.Time) int {
	return calendar.DaysBetween(today, c.DueDate)
}

// DaysOverdue is zero until the due date has passed.
func (c *Cycle) DaysOverdue(today time.Time) int {
	if d := calendar.DaysBetween(c.DueDate, today); d > 0 {
		return d
	}
	return 0
}

// IsOverdue reports an unpaid or partially paid cycle past its due date.
func (c *Cycle) IsOverdue(today time.Time) bool {
	return c.DaysOverdue(today) > 0 && !c.FullyPaid()
}

// IsDueSoon reports an open cycle due within window days from today.
func (c *Cycle) IsDueSoon(today time.Time, window int) bool {
	d := c.DaysUntilDue(today)
	return d >= 0 && d <= window && !c.FullyPaid()
}

// MarkArchived sets the archived flag with its audit data.
func (c *Cycle) MarkArchived(at time.Time, reason string) {
	c.Archived = true
	c.ArchivedAt = sql.NullTime{Time: at, Valid: true}
	c.ArchiveReason = sql.NullString{String: reason, Valid: reason != ""}
}

// ClearArchived reverts MarkArchived. The reason for reverting is recorded in
// ArchiveReason so the audit trail survives.
func (c *Cycle) ClearArchived(reason string) {
	c.Archived = false
	c.ArchivedAt = sql.NullTime{}
	c.ArchiveReason = sql.NullString{String: reason, Valid: reason != ""}
}

// AdjustAmount replaces the total amount, keeping the pre-adjustment value.
func (c *Cycle) AdjustAmount(amount decimal.Decimal, reason string, at time.Time) {
	if !c.OriginalAmount.Valid {
		c.OriginalAmount = decimal.NullDecimal{Decimal: c.TotalAmount, Valid: true}
	}
	c.TotalAmount = amount
	c.markAdjusted(reason, at)
}

// AdjustDueDate moves the due date, keeping the pre-adjustment value.
func (c *Cycle) AdjustDueDate(date time.Time, reason string, at time.Time) {
	if !c.OriginalDueDate.Valid {
		c.OriginalDueDate = sql.NullTime{Time: c.DueDate, Valid: true}
	}
	c.DueDate = calendar.Day(date)
	c.markAdjusted(reason, at)
}

func (c *Cycle) markAdjusted(reason string, at time.Time) {
	c.AdjustmentReason = sql.NullString{String: reason, Valid: true}
	c.AdjustedAt = sql.NullTime{Time: at, Valid: true}
}
