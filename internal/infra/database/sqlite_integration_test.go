package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func seedProject(t *testing.T, db *DB, renewal time.Time) *project.Project {
	t.Helper()
	repo := NewProjectRepository(db)
	p := &project.Project{
		OwnerID:     100,
		Name:        "Streaming",
		Cost:        decimal.RequireFromString("30.00"),
		Currency:    "EUR",
		Frequency:   project.FrequencyMonthly,
		RenewalDate: renewal,
		IsActive:    true,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	for i, name := range []string{"Ana", "Ben"} {
		m := &project.Member{ProjectID: p.ID, UserID: int64(101 + i), Name: name, ChatID: int64(9001 + i)}
		require.NoError(t, repo.AddMember(context.Background(), m))
	}
	return p
}

type nopDispatcher struct{}

func (nopDispatcher) Enqueue(context.Context, *reminder.Task) error { return nil }

func (nopDispatcher) Schedule(context.Context, int64, int64, time.Time) error { return nil }

func TestSQLiteSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(newSQLiteDB(t))

	_, err := repo.Get(ctx)
	require.ErrorIs(t, err, settings.ErrSettingsNotFound)
	require.ErrorIs(t, repo.Update(ctx, settings.Default()), settings.ErrSettingsNotFound)

	cfg := settings.Default()
	cfg.GenerationHorizonMonths = 5
	cfg.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Create(ctx, cfg))
	assert.ErrorIs(t, repo.Create(ctx, settings.Default()), settings.ErrSettingsAlreadyExist)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, got.GenerationHorizonMonths)
	assert.Equal(t, project.AllFrequencies, got.SupportedFrequencies)
	assert.Equal(t, []project.Frequency{project.FrequencyMonthly}, got.DefaultFrequencies)

	got.RemindersEnabled = false
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, again.RemindersEnabled)
}

func TestSQLiteProjects(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	renewal := calendar.Day(time.Now())
	p := seedProject(t, db, renewal)
	repo := NewProjectRepository(db)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Streaming", got.Name)
	assert.True(t, got.Cost.Equal(decimal.RequireFromString("30")))
	assert.True(t, got.RenewalDate.Equal(renewal))
	assert.Nil(t, got.ReminderOverride)
	require.Len(t, got.Members, 2)

	err = repo.AddMember(ctx, &project.Member{ProjectID: p.ID, UserID: 101, Name: "Ana again"})
	assert.ErrorIs(t, err, ErrDuplicateMember)

	require.NoError(t, repo.SetUnsubscribed(ctx, got.Members[1].ID, true))
	members, err := repo.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, members[1].Unsubscribed)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, project.ErrProjectNotFound)

	ids, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, ids)
}

func TestSQLiteProjectOverride(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewProjectRepository(db)
	p := &project.Project{
		Name: "Cloud", Cost: decimal.NewFromInt(12), Currency: "EUR", Frequency: project.FrequencyYearly,
		RenewalDate: calendar.Day(time.Now()), IsActive: true,
		ReminderOverride: &project.ReminderOverride{DaysBefore: -1, MaxLevel: 2},
	}
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReminderOverride)
	assert.Equal(t, -1, got.ReminderOverride.DaysBefore)
	assert.Equal(t, 2, got.ReminderOverride.MaxLevel)
}

func TestSQLiteCycles(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	today := calendar.Day(time.Now())
	p := seedProject(t, db, today)
	repo := NewCycleRepository(db)

	first := &cycle.Cycle{ProjectID: p.ID, DueDate: today, TotalAmount: p.Cost}
	second := &cycle.Cycle{ProjectID: p.ID, DueDate: calendar.AddMonths(today, 1), TotalAmount: p.Cost}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.ErrorIs(t, repo.Create(ctx, &cycle.Cycle{ProjectID: p.ID, DueDate: today, TotalAmount: p.Cost}), cycle.ErrDuplicateDueDate)

	require.NoError(t, repo.AddPayment(ctx, &cycle.Payment{
		CycleID: first.ID, MemberID: 1, Amount: decimal.RequireFromString("10.00"), Status: cycle.PaymentConfirmed, EvidenceRef: "tx-1",
	}))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.DueDate.Equal(today))
	require.Len(t, got.Payments, 1)
	assert.Equal(t, "tx-1", got.Payments[0].EvidenceRef)
	assert.Equal(t, cycle.StatusPartial, got.Status())

	latest, err := repo.Latest(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	dates, err := repo.ListDueDatesFrom(ctx, p.ID, calendar.AddDays(today, 1))
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(second.DueDate))

	got.MarkArchived(time.Now(), "closed")
	require.NoError(t, repo.UpdateArchiveState(ctx, got))
	active, err := repo.ListByProject(ctx, p.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := repo.ListByProject(ctx, p.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Archived)
	assert.Equal(t, "closed", all[0].ArchiveReason.String)
	assert.Len(t, all[0].Payments, 1)
}

func TestSQLiteAdjustDueDateClash(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	today := calendar.Day(time.Now())
	p := seedProject(t, db, today)
	repo := NewCycleRepository(db)

	a := &cycle.Cycle{ProjectID: p.ID, DueDate: calendar.AddDays(today, 5), TotalAmount: p.Cost}
	b := &cycle.Cycle{ProjectID: p.ID, DueDate: calendar.AddDays(today, 35), TotalAmount: p.Cost}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	b.AdjustDueDate(a.DueDate, "align", time.Now())
	assert.ErrorIs(t, repo.UpdateAdjustment(ctx, b), cycle.ErrDuplicateDueDate)

	moved := calendar.AddDays(today, 36)
	b.DueDate = moved
	require.NoError(t, repo.UpdateAdjustment(ctx, b))
	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.DueDate.Equal(moved))
	require.True(t, got.OriginalDueDate.Valid)
	assert.True(t, got.OriginalDueDate.Time.Equal(calendar.AddDays(today, 35)))
	assert.Equal(t, "align", got.AdjustmentReason.String)
}

func TestSQLiteReminderLogDedup(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	today := calendar.Day(time.Now())
	p := seedProject(t, db, today)
	c := &cycle.Cycle{ProjectID: p.ID, DueDate: today, TotalAmount: p.Cost}
	require.NoError(t, NewCycleRepository(db).Create(ctx, c))
	repo := NewReminderLogRepository(db)

	entry := func(day time.Time) *reminder.Log {
		return &reminder.Log{ProjectID: p.ID, CycleID: c.ID, Tier: reminder.TierStandard, MemberID: 1, SentOn: day}
	}
	ok, err := repo.Record(ctx, entry(today))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Record(ctx, entry(today))
	require.NoError(t, err)
	assert.False(t, ok, "same cycle, tier, member and day")

	yesterday := entry(calendar.AddDays(today, -1))
	ok, err = repo.Record(ctx, yesterday)
	require.NoError(t, err)
	assert.True(t, ok)

	logs, err := repo.ListByProject(ctx, p.ID, today)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, reminder.TierStandard, logs[0].Tier)

	require.NoError(t, repo.Delete(ctx, yesterday.ID))
	history, err := repo.ListForCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSQLiteConcurrentGenerationPersistsOneCyclePerDueDate(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	require.NoError(t, NewSettingsRepository(db).Create(ctx, settings.Default()))
	p := seedProject(t, db, calendar.AddDays(time.Now(), 7))

	cycles := NewCycleRepository(db)
	l, _ := test.NewNullLogger()
	manager := app.NewManager(NewSettingsRepository(db), NewProjectRepository(db), cycles,
		NewReminderLogRepository(db), nopDispatcher{}, nil, logrus.NewEntry(l), time.UTC)

	const runs = 4
	var (
		wg      sync.WaitGroup
		results = make([]*app.GenerateResult, runs)
		errs    = make([]error, runs)
	)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.GenerateUpcoming(ctx, p.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Zero(t, results[i].Failed)
		created += len(results[i].Created)
	}

	stored, err := cycles.ListByProject(ctx, p.ID, true)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, len(stored), created)

	seen := make(map[string]bool)
	for _, c := range stored {
		key := calendar.Format(c.DueDate)
		assert.False(t, seen[key], "duplicate cycle for %s", key)
		seen[key] = true
	}

	again, err := manager.GenerateUpcoming(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.NoChanges())
}
