package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func newAdmin(h *harness) *AdminService {
	s := NewAdminService(h.settings, h.projects, h.cycles, nullLogger(), time.UTC)
	s.now = func() time.Time { return testNow }
	return s
}

func TestUpdateConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the singleton from defaults", func(t *testing.T) {
		h := newHarness()
		h.settings.cfg = nil
		res, err := newAdmin(h).UpdateConfig(ctx, settings.Update{GenerationHorizonMonths: intPtr(6)})
		require.NoError(t, err)
		require.Empty(t, res.ValidationErrors)
		assert.True(t, res.Created)
		assert.Equal(t, 1, h.settings.created)
		assert.Equal(t, 6, h.settings.cfg.GenerationHorizonMonths)
		assert.Equal(t, int32(settings.SingletonID), h.settings.cfg.ID)
		assert.Equal(t, testNow, h.settings.cfg.UpdatedAt)
	})

	t.Run("updates the existing singleton", func(t *testing.T) {
		h := newHarness()
		res, err := newAdmin(h).UpdateConfig(ctx, settings.Update{DueSoonDays: intPtr(10)})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, 1, h.settings.updated)
		assert.Equal(t, 10, h.settings.cfg.DueSoonDays)
	})

	t.Run("range violations are not stored", func(t *testing.T) {
		h := newHarness()
		res, err := newAdmin(h).UpdateConfig(ctx, settings.Update{
			GenerationHorizonMonths: intPtr(24),
			DueSoonDays:             intPtr(3),
		})
		require.NoError(t, err)
		require.Len(t, res.ValidationErrors, 1)
		assert.Contains(t, res.ValidationErrors[0], "generation_horizon_months")
		assert.Zero(t, h.settings.updated)
		assert.Equal(t, 7, h.settings.cfg.DueSoonDays)
		assert.Equal(t, 3, res.Config.GenerationHorizonMonths)
	})

	t.Run("unordered reminder offsets are rejected", func(t *testing.T) {
		h := newHarness()
		res, err := newAdmin(h).UpdateConfig(ctx, settings.Update{UrgentDaysOverdue: intPtr(30)})
		require.NoError(t, err)
		require.NotEmpty(t, res.ValidationErrors)
		assert.Contains(t, res.ValidationErrors[0], "urgent reminder offset")
		assert.Zero(t, h.settings.updated)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness()
		h.settings.updateErr = errors.New("read-only transaction")
		_, err := newAdmin(h).UpdateConfig(ctx, settings.Update{DueSoonDays: intPtr(10)})
		assert.Error(t, err)
	})
}

func TestForceArchive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testProject(1))
	admin := newAdmin(h)
	c := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(10), TotalAmount: money("30.00")})

	_, err := admin.ForceArchive(ctx, c.ID, "  ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = admin.ForceArchive(ctx, 404, "cancelled")
	assert.ErrorIs(t, err, cycle.ErrCycleNotFound)

	ok, err := admin.ForceArchive(ctx, c.ID, "project cancelled")
	require.NoError(t, err)
	assert.True(t, ok)
	stored, _ := h.cycles.GetByID(ctx, c.ID)
	assert.True(t, stored.Archived)
	assert.Equal(t, "project cancelled", stored.ArchiveReason.String)
	assert.Equal(t, testNow, stored.ArchivedAt.Time)

	ok, err = admin.ForceArchive(ctx, c.ID, "again")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnarchive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testProject(1))
	admin := newAdmin(h)

	recent := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(-200), TotalAmount: money("30.00")})
	ancient := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(-400), TotalAmount: money("30.00")})
	for _, c := range []*cycle.Cycle{recent, ancient} {
		c.MarkArchived(testNow, "archived automatically")
		require.NoError(t, h.cycles.UpdateArchiveState(ctx, c))
	}

	ok, err := admin.Unarchive(ctx, recent.ID, "payment disputed")
	require.NoError(t, err)
	assert.True(t, ok)
	stored, _ := h.cycles.GetByID(ctx, recent.ID)
	assert.False(t, stored.Archived)
	assert.Equal(t, "payment disputed", stored.ArchiveReason.String)

	ok, err = admin.Unarchive(ctx, ancient.ID, "payment disputed")
	require.NoError(t, err)
	assert.False(t, ok)
	stored, _ = h.cycles.GetByID(ctx, ancient.ID)
	assert.True(t, stored.Archived)

	_, err = admin.Unarchive(ctx, 404, "x")
	assert.ErrorIs(t, err, cycle.ErrCycleNotFound)
}

func TestAdjustAmount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testProject(1))
	admin := newAdmin(h)
	c := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(10), TotalAmount: money("30.00")})

	_, err := admin.AdjustAmount(ctx, c.ID, money("0"), "free month")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	adjusted, err := admin.AdjustAmount(ctx, c.ID, money("25.50"), "discount")
	require.NoError(t, err)
	assert.True(t, money("25.50").Equal(adjusted.TotalAmount))

	adjusted, err = admin.AdjustAmount(ctx, c.ID, money("20.00"), "bigger discount")
	require.NoError(t, err)
	stored, _ := h.cycles.GetByID(ctx, c.ID)
	assert.True(t, money("20.00").Equal(stored.TotalAmount))
	assert.True(t, stored.OriginalAmount.Valid)
	assert.True(t, money("30.00").Equal(stored.OriginalAmount.Decimal), "original survives repeated adjustments")
	assert.Equal(t, "bigger discount", stored.AdjustmentReason.String)
	assert.True(t, stored.IsAdjusted())
	assert.Equal(t, adjusted.ID, stored.ID)
}

func TestAdjustDueDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testProject(1))
	admin := newAdmin(h)
	a := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(10), TotalAmount: money("30.00")})
	b := h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(40), TotalAmount: money("30.00")})

	_, err := admin.AdjustDueDate(ctx, a.ID, day(40), "align with b")
	assert.ErrorIs(t, err, cycle.ErrDuplicateDueDate)
	stored, _ := h.cycles.GetByID(ctx, a.ID)
	assert.Equal(t, day(10), stored.DueDate)

	moved, err := admin.AdjustDueDate(ctx, a.ID, day(12).Add(15*time.Hour), "payday moved")
	require.NoError(t, err)
	assert.Equal(t, day(12), moved.DueDate)
	stored, _ = h.cycles.GetByID(ctx, a.ID)
	assert.Equal(t, day(12), stored.DueDate)
	assert.Equal(t, day(10), stored.OriginalDueDate.Time)

	unchanged, err := admin.AdjustDueDate(ctx, b.ID, day(40), "noop")
	require.NoError(t, err)
	assert.False(t, unchanged.IsAdjusted())
}

func TestCreateCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testProject(1))
	admin := newAdmin(h)
	h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(10), TotalAmount: money("30.00")})

	res, err := admin.CreateCycle(ctx, 1, day(15))
	require.NoError(t, err)
	require.True(t, res.Created)
	assert.Equal(t, day(15), res.Cycle.DueDate)
	assert.True(t, money("30.00").Equal(res.Cycle.TotalAmount))

	for name, date := range map[string]time.Time{
		"existing due date":  day(10),
		"in the past":        day(-1),
		"beyond the horizon": calendar.AddDays(calendar.AddMonths(testToday, 3), 1),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := admin.CreateCycle(ctx, 1, date)
			require.NoError(t, err)
			assert.False(t, res.Created)
		})
	}

	t.Run("unknown project", func(t *testing.T) {
		_, err := admin.CreateCycle(ctx, 99, day(20))
		assert.Error(t, err)
	})

	t.Run("settings missing", func(t *testing.T) {
		h := newHarness(testProject(1))
		h.settings.cfg = nil
		res, err := newAdmin(h).CreateCycle(ctx, 1, day(20))
		require.NoError(t, err)
		assert.Equal(t, settings.ValidationErrors{notConfigured}, res.ValidationErrors)
	})
}
