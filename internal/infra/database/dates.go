package database

import (
	"database/sql"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
)

// DATE columns are written as YYYY-MM-DD text so both backends compare and
// deduplicate them the same way.

func dateParam(t time.Time) string {
	return calendar.Format(t)
}

func nullDateParam(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	return calendar.Format(t.Time)
}

// dateScanner reads a DATE column into a calendar day whatever the driver returns.
type dateScanner struct {
	dst   *time.Time
	valid *bool
}

func scanDate(dst *time.Time) *dateScanner { return &dateScanner{dst: dst} }

func scanNullDate(dst *sql.NullTime) *dateScanner {
	return &dateScanner{dst: &dst.Time, valid: &dst.Valid}
}

func (s *dateScanner) Scan(src interface{}) error {
	var (
		t   time.Time
		err error
	)
	switch v := src.(type) {
	case nil:
		if s.valid == nil {
			return fmt.Errorf("unexpected NULL date")
		}
		*s.dst, *s.valid = time.Time{}, false
		return nil
	case time.Time:
		t = v
	case string:
		t, err = parseDateText(v)
	case []byte:
		t, err = parseDateText(string(v))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
	if err != nil {
		return err
	}
	*s.dst = calendar.Day(t)
	if s.valid != nil {
		*s.valid = true
	}
	return nil
}

func parseDateText(s string) (time.Time, error) {
	if len(s) >= len(calendar.DateLayout) {
		if t, err := calendar.Parse(s[:len(calendar.DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
