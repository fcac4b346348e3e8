package project

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project is a recurring shared cost (a subscription) split between its owner and members.
// Corresponds to the 'projects' table.
type Project struct {
	ID          int64
	OwnerID     int64
	Name        string
	Cost        decimal.Decimal
	Currency    string
	Frequency   Frequency
	RenewalDate time.Time // anchor of the billing schedule
	IsActive    bool
	// ReminderOverride is the project's own reminder schedule, nil when the
	// lifecycle settings apply unchanged.
	ReminderOverride *ReminderOverride
	Members          []*Member
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReminderOverride narrows reminder dispatch for a single project. It never
// changes how a cycle's tier is classified.
type ReminderOverride struct {
	DaysBefore int // gentle reminders wait until the due date is this close; negative: no wait
	MaxLevel   int // highest tier urgency rank that is dispatched (1-4); 0: no limit
}

// Member is a participant sharing the project cost. The owner is not a member.
type Member struct {
	ID           int64
	ProjectID    int64
	UserID       int64
	Name         string
	ChatID       int64 // messenger chat used for reminders
	Unsubscribed bool  // opted out of reminders for this project
	CreatedAt    time.Time
}

// CostPerMember splits the cost evenly between the members and the owner.
func (p *Project) CostPerMember() decimal.Decimal {
	return p.Cost.Div(decimal.NewFromInt(int64(len(p.Members) + 1))).Round(2)
}

// MemberByID returns the member with the given ID, or nil.
func (p *Project) MemberByID(id int64) *Member {
	for _, m := range p.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// IsUnsubscribed reports whether memberID opted out of reminders for this project.
// Unknown members are treated as unsubscribed.
func (p *Project) IsUnsubscribed(memberID int64) bool {
	m := p.MemberByID(memberID)
	return m == nil || m.Unsubscribed
}
