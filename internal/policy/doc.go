// Package policy decides what should happen to billing cycles: which cycles must be
// generated, which may be archived and which reminders are due.
//
// Policies never perform I/O. They are built per pass from the lifecycle settings and
// the moment the pass runs, and answer questions about the entities they are given.
// Applying the answers is the job of the app.Manager.
package policy

import (
	"time"

	"billing_cycle_bot/internal/domain/calendar"
)

// Moment pins a pass to one instant and the calendar day it falls on.
type Moment struct {
	Now   time.Time
	Today time.Time
}

// At returns the moment for now as seen in loc.
func At(now time.Time, loc *time.Location) Moment {
	return Moment{Now: now, Today: calendar.Today(now, loc)}
}
