package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billing_cycle_bot/internal/domain/settings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultBatchWorkers = 4

// PassReport aggregates one batch pass over many projects.
type PassReport struct {
	ID               string
	Operation        Operation
	StartedAt        time.Time
	Duration         time.Duration
	Projects         int
	FailedProjects   int
	Generated        int
	Skipped          int
	Archived         int
	Dispatched       int
	Deduplicated     int
	Suppressed       int
	ItemFailures     int
	ValidationErrors settings.ValidationErrors
}

// BatchRunner runs a lifecycle operation over many projects in parallel. Projects
// never share a transaction, so a failing project does not undo the others.
type BatchRunner struct {
	manager *Manager
	workers int
	log     *logrus.Entry
}

func NewBatchRunner(m *Manager, workers int) *BatchRunner {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	return &BatchRunner{
		manager: m,
		workers: workers,
		log:     m.log.WithField("component", "batch"),
	}
}

// RunPass runs op for every active project.
func (r *BatchRunner) RunPass(ctx context.Context, op Operation) (*PassReport, error) {
	ids, err := r.manager.projectRepo.ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active projects: %w", err)
	}
	return r.RunProjects(ctx, op, ids)
}

// RunProjects runs op for the given projects under a single pass. Settings are read
// once up front; invalid settings abort the pass before any project is touched.
func (r *BatchRunner) RunProjects(ctx context.Context, op Operation, projectIDs []int64) (*PassReport, error) {
	started := r.manager.now()
	pass, verrs, err := r.manager.BeginPass(ctx)
	if err != nil {
		return nil, err
	}
	report := &PassReport{Operation: op, StartedAt: started}
	if len(verrs) > 0 {
		r.log.WithField("operation", op).Warnf("Pass skipped, invalid settings: %v", verrs)
		report.ValidationErrors = verrs
		return report, nil
	}
	report.ID = pass.ID

	log := r.log.WithFields(logrus.Fields{"operation": op, "pass_id": pass.ID})
	log.Infof("Starting pass over %d project(s)", len(projectIDs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range projectIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runOne(gctx, pass, op, id)

			mu.Lock()
			defer mu.Unlock()
			report.Projects++
			if err != nil {
				log.WithField("project_id", id).Errorf("Project failed: %v", err)
				r.manager.metrics.Failure(op)
				report.FailedProjects++
				return nil
			}
			res.addTo(report)
			return nil
		})
	}
	err = g.Wait()

	report.Duration = r.manager.now().Sub(started)
	r.manager.metrics.ObservePass(op, report.Duration)
	log.WithFields(logrus.Fields{
		"projects":        report.Projects,
		"failed_projects": report.FailedProjects,
		"item_failures":   report.ItemFailures,
		"duration":        report.Duration.String(),
	}).Info("Pass finished")

	if err != nil {
		return report, fmt.Errorf("pass %s interrupted: %w", pass.ID, err)
	}
	return report, nil
}

type passResult interface {
	addTo(*PassReport)
}

func (r *BatchRunner) runOne(ctx context.Context, pass *Pass, op Operation, projectID int64) (passResult, error) {
	switch op {
	case OpGenerate:
		return r.manager.generate(ctx, pass, projectID)
	case OpArchive:
		return r.manager.archive(ctx, pass, projectID)
	case OpRemind:
		return r.manager.remind(ctx, pass, projectID)
	default:
		return nil, fmt.Errorf("unknown lifecycle operation %q", op)
	}
}

func (g *GenerateResult) addTo(p *PassReport) {
	p.Generated += len(g.Created)
	p.Skipped += g.Skipped
	p.ItemFailures += g.Failed
}

func (a *ArchiveResult) addTo(p *PassReport) {
	p.Archived += a.Archived
	p.ItemFailures += a.Failed
}

func (r *ReminderResult) addTo(p *PassReport) {
	p.Dispatched += r.Dispatched
	p.Deduplicated += r.Deduplicated
	p.Suppressed += r.Suppressed
	p.ItemFailures += r.Failed
	if len(r.ValidationErrors) > 0 && len(p.ValidationErrors) == 0 {
		p.ValidationErrors = r.ValidationErrors
	}
}
