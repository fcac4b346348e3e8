package policy

import (
	"time"

	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/shopspring/decimal"
)

var (
	today = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	now   = Moment{Now: today.Add(10 * time.Hour), Today: today}
)

func day(offset int) time.Time { return today.AddDate(0, 0, offset) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testProject(f project.Frequency) *project.Project {
	return &project.Project{
		ID:          7,
		Name:        "Streaming",
		Cost:        money("30.00"),
		Currency:    "EUR",
		Frequency:   f,
		RenewalDate: day(7),
		IsActive:    true,
		Members: []*project.Member{
			{ID: 1, Name: "Ana", ChatID: 101},
			{ID: 2, Name: "Ben", ChatID: 102},
		},
	}
}

func testCycle(id int64, due time.Time, total string, payments ...*cycle.Payment) *cycle.Cycle {
	return &cycle.Cycle{ID: id, ProjectID: 7, DueDate: due, TotalAmount: money(total), Payments: payments}
}

func paid(memberID int64, amount string) *cycle.Payment {
	return &cycle.Payment{MemberID: memberID, Amount: money(amount), Status: cycle.PaymentConfirmed}
}

func testSettings() *settings.Config {
	return settings.Default()
}
