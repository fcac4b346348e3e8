package reminder

import (
	"context"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
)

// Log records one reminder dispatched to one member.
// Corresponds to the 'reminder_logs' table; (cycle_id, tier, member_id, sent_on) is unique,
// which makes it the "already sent today" dedup key.
type Log struct {
	ID        int64
	ProjectID int64
	CycleID   int64
	Tier      Tier
	MemberID  int64
	SentOn    time.Time // calendar day
	CreatedAt time.Time
}

// History answers when a tier was last sent for a cycle. Implementations that know
// nothing return false; "no history" is a valid answer, not an error.
type History interface {
	LastSent(cycleID int64, tier Tier) (time.Time, bool)
}

// MemberHistory is a History that also knows who each reminder went to. Policies use
// it, when available, to keep reminding members whose send did not go through.
type MemberHistory interface {
	History
	LastSentTo(cycleID int64, tier Tier, memberID int64) (time.Time, bool)
}

// NoHistory is the History of a system that never sent anything.
type NoHistory struct{}

func (NoHistory) LastSent(int64, Tier) (time.Time, bool) { return time.Time{}, false }

type historyKey struct {
	cycleID int64
	tier    Tier
}

type memberKey struct {
	historyKey
	memberID int64
}

// SentLog is an in-memory MemberHistory built from persisted logs.
type SentLog struct {
	byCycle  map[historyKey]time.Time
	byMember map[memberKey]time.Time
}

// NewSentLog indexes logs by cycle and tier, and by member, keeping the latest day.
func NewSentLog(logs []*Log) *SentLog {
	s := &SentLog{
		byCycle:  make(map[historyKey]time.Time, len(logs)),
		byMember: make(map[memberKey]time.Time, len(logs)),
	}
	for _, l := range logs {
		s.Add(l.CycleID, l.Tier, l.MemberID, l.SentOn)
	}
	return s
}

func (s *SentLog) Add(cycleID int64, tier Tier, memberID int64, day time.Time) {
	k := historyKey{cycleID, tier}
	day = calendar.Day(day)
	keepLatest(s.byCycle, k, day)
	keepLatest(s.byMember, memberKey{k, memberID}, day)
}

func keepLatest[K comparable](m map[K]time.Time, k K, day time.Time) {
	if prev, ok := m[k]; !ok || day.After(prev) {
		m[k] = day
	}
}

// LastSent is the latest day tier went to any member of the cycle.
func (s *SentLog) LastSent(cycleID int64, tier Tier) (time.Time, bool) {
	t, ok := s.byCycle[historyKey{cycleID, tier}]
	return t, ok
}

func (s *SentLog) LastSentTo(cycleID int64, tier Tier, memberID int64) (time.Time, bool) {
	t, ok := s.byMember[memberKey{historyKey{cycleID, tier}, memberID}]
	return t, ok
}

// Repository persists reminder logs.
type Repository interface {
	// Record inserts the log unless the same cycle, tier, member and day exists.
	// It reports whether a row was inserted.
	Record(ctx context.Context, l *Log) (bool, error)
	Delete(ctx context.Context, id int64) error
	ListByProject(ctx context.Context, projectID int64, since time.Time) ([]*Log, error)
}
