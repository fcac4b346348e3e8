package cycle

import (
	"time"

	"billing_cycle_bot/internal/domain/calendar"
)

// DueDates is the set of calendar days that already have a cycle.
type DueDates map[time.Time]struct{}

func NewDueDates(dates ...time.Time) DueDates {
	s := make(DueDates, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DueDates) Add(d time.Time) {
	s[calendar.Day(d)] = struct{}{}
}

func (s DueDates) Has(d time.Time) bool {
	_, ok := s[calendar.Day(d)]
	return ok
}
