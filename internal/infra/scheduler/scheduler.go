package scheduler

import (
	"context"
	"fmt"
	"time"

	"billing_cycle_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PassRunner runs lifecycle passes; implemented by app.BatchRunner.
type PassRunner interface {
	RunPass(ctx context.Context, op app.Operation) (*app.PassReport, error)
	RunProjects(ctx context.Context, op app.Operation, projectIDs []int64) (*app.PassReport, error)
}

// DueSource hands out projects whose reminders were scheduled for re-evaluation.
type DueSource interface {
	DueProjects(ctx context.Context, until time.Time) ([]int64, error)
}

// Specs are the cron expressions of the scheduled jobs. An empty spec disables its job.
type Specs struct {
	Generate           string
	Archive            string
	Reminders          string
	ScheduledReminders string
}

const (
	passTimeout  = 30 * time.Minute
	drainTimeout = 5 * time.Minute
)

type LifecycleScheduler struct {
	cronEngine *cron.Cron
	runner     PassRunner
	due        DueSource
	logger     *logrus.Entry
	specs      Specs
	now        func() time.Time
}

func NewLifecycleScheduler(runner PassRunner, due DueSource, logger *logrus.Entry, specs Specs, loc *time.Location) *LifecycleScheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.WithField("component", "scheduler")
	return &LifecycleScheduler{
		// A pass that is still running when its next tick fires is skipped, not stacked.
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger)), cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		runner: runner,
		due:    due,
		logger: logger,
		specs:  specs,
		now:    time.Now,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *LifecycleScheduler) Start() error {
	s.logger.Info("Starting lifecycle scheduler...")

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"generate", s.specs.Generate, func() { s.RunOperation(app.OpGenerate) }},
		{"archive", s.specs.Archive, func() { s.RunOperation(app.OpArchive) }},
		{"reminders", s.specs.Reminders, func() { s.RunOperation(app.OpRemind) }},
		{"scheduled reminders", s.specs.ScheduledReminders, s.DrainScheduled},
	}
	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Infof("Cron job %q disabled", job.name)
			continue
		}
		if _, err := s.cronEngine.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("could not add %s cron job: %w", job.name, err)
		}
	}

	s.cronEngine.Start()
	s.logger.Info("Lifecycle scheduler started with jobs.")
	return nil
}

// RunOperation runs one pass of op over every active project.
func (s *LifecycleScheduler) RunOperation(op app.Operation) {
	s.logger.Infof("Cron job triggered for %s pass.", op)
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	report, err := s.runner.RunPass(ctx, op)
	s.logReport(op, report, err)
}

// DrainScheduled runs reminder passes for projects whose scheduled time has come.
func (s *LifecycleScheduler) DrainScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	// Entries claimed before an error still have to run.
	ids, err := s.due.DueProjects(ctx, s.now())
	if err != nil {
		s.logger.Errorf("Error reading scheduled reminders: %v", err)
	}
	if len(ids) == 0 {
		return
	}
	s.logger.Infof("Running scheduled reminders for %d project(s).", len(ids))
	report, err := s.runner.RunProjects(ctx, app.OpRemind, ids)
	s.logReport(app.OpRemind, report, err)
}

func (s *LifecycleScheduler) logReport(op app.Operation, report *app.PassReport, err error) {
	log := s.logger.WithField("operation", op)
	if err != nil {
		log.Errorf("Error during %s pass: %v", op, err)
	}
	if report == nil {
		return
	}
	if len(report.ValidationErrors) > 0 {
		log.Warnf("Pass reported invalid settings: %v", report.ValidationErrors)
		return
	}
	log.WithFields(logrus.Fields{
		"pass_id":         report.ID,
		"projects":        report.Projects,
		"failed_projects": report.FailedProjects,
		"generated":       report.Generated,
		"archived":        report.Archived,
		"dispatched":      report.Dispatched,
	}).Infof("%s pass completed", op)
}

func (s *LifecycleScheduler) Stop() {
	s.logger.Info("Stopping lifecycle scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Lifecycle scheduler gracefully stopped.")
}
