package app

import (
	"context"
	"testing"

	"billing_cycle_bot/internal/domain/cycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPassGenerate(t *testing.T) {
	inactive := testProject(3)
	inactive.IsActive = false
	h := newHarness(testProject(1), testProject(2), inactive)
	runner := NewBatchRunner(h.manager, 2)

	report, err := runner.RunPass(context.Background(), OpGenerate)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, OpGenerate, report.Operation)
	assert.Equal(t, 2, report.Projects)
	assert.Zero(t, report.FailedProjects)
	assert.Equal(t, 6, report.Generated)
	assert.Zero(t, h.cycles.count(3))
	assert.Equal(t, 1, h.metrics.passes)
}

func TestRunProjectsIsolatesFailures(t *testing.T) {
	h := newHarness(testProject(1), testProject(2))
	runner := NewBatchRunner(h.manager, 0)

	report, err := runner.RunProjects(context.Background(), OpGenerate, []int64{1, 99, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Projects)
	assert.Equal(t, 1, report.FailedProjects)
	assert.Equal(t, 6, report.Generated)
	assert.Equal(t, 1, h.metrics.failures[OpGenerate])
}

func TestRunPassArchiveAndRemind(t *testing.T) {
	h := newHarness(testProject(1))
	h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(-300), TotalAmount: money("30.00")})
	h.addCycle(&cycle.Cycle{ProjectID: 1, DueDate: day(-2), TotalAmount: money("30.00")})
	runner := NewBatchRunner(h.manager, 4)

	archived, err := runner.RunPass(context.Background(), OpArchive)
	require.NoError(t, err)
	assert.Equal(t, 1, archived.Archived)

	reminded, err := runner.RunPass(context.Background(), OpRemind)
	require.NoError(t, err)
	assert.Equal(t, 2, reminded.Dispatched)
	assert.Len(t, h.dispatcher.tasks, 2)
}

func TestRunPassInvalidSettings(t *testing.T) {
	h := newHarness(testProject(1))
	h.settings.cfg = nil
	runner := NewBatchRunner(h.manager, 1)

	report, err := runner.RunPass(context.Background(), OpGenerate)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ValidationErrors)
	assert.Zero(t, report.Projects)
	assert.Zero(t, h.cycles.count(1))
}

func TestRunPassCancelled(t *testing.T) {
	h := newHarness(testProject(1))
	runner := NewBatchRunner(h.manager, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := runner.RunPass(ctx, OpGenerate)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Generated)
}

func TestRunProjectsUnknownOperation(t *testing.T) {
	h := newHarness(testProject(1))
	report, err := NewBatchRunner(h.manager, 1).RunProjects(context.Background(), Operation("purge"), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedProjects)
}
