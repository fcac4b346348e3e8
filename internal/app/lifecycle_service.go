package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"
	"billing_cycle_bot/internal/policy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// historyLookbackDays covers the longest resend interval.
const historyLookbackDays = 7

// Operation names a lifecycle pass.
type Operation string

const (
	OpGenerate Operation = "generate"
	OpArchive  Operation = "archive"
	OpRemind   Operation = "remind"
)

// Operations lists every pass kind.
var Operations = []Operation{OpGenerate, OpArchive, OpRemind}

// ParseOperation maps a CLI/config name to an Operation.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown lifecycle operation %q", s)
}

// LifecycleService runs the billing cycle lifecycle for one project at a time.
// Every operation is safe to re-run.
type LifecycleService interface {
	GenerateUpcoming(ctx context.Context, projectID int64) (*GenerateResult, error)
	ArchiveOld(ctx context.Context, projectID int64) (*ArchiveResult, error)
	ProcessReminders(ctx context.Context, projectID int64) (*ReminderResult, error)
	Statistics(ctx context.Context, projectID int64) (*Statistics, error)
}

// Pass is the state shared by every project processed in one run: the settings are
// read once and the clock is frozen.
type Pass struct {
	ID     string
	Config *settings.Config
	At     policy.Moment
}

// Manager sequences the policies and performs all persistence and dispatch.
type Manager struct {
	settingsRepo settings.Repository
	projectRepo  project.Repository
	cycleRepo    cycle.Repository
	reminderLogs reminder.Repository
	dispatcher   reminder.Dispatcher
	metrics      MetricsRecorder
	log          *logrus.Entry
	loc          *time.Location
	now          func() time.Time
}

func NewManager(
	sr settings.Repository,
	pr project.Repository,
	cr cycle.Repository,
	rl reminder.Repository,
	d reminder.Dispatcher,
	metrics MetricsRecorder,
	log *logrus.Entry,
	loc *time.Location,
) *Manager {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		settingsRepo: sr,
		projectRepo:  pr,
		cycleRepo:    cr,
		reminderLogs: rl,
		dispatcher:   d,
		metrics:      metrics,
		log:          log.WithField("component", "lifecycle"),
		loc:          loc,
		now:          time.Now,
	}
}

// BeginPass loads and validates the settings singleton. A missing or invalid
// singleton is reported through the returned validation errors, not as an error.
func (m *Manager) BeginPass(ctx context.Context) (*Pass, settings.ValidationErrors, error) {
	cfg, err := m.settingsRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrSettingsNotFound) {
			return nil, settings.ValidationErrors{notConfigured}, nil
		}
		return nil, nil, fmt.Errorf("failed to load lifecycle settings: %w", err)
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		return nil, verrs, nil
	}
	return &Pass{
		ID:     uuid.NewString(),
		Config: cfg,
		At:     policy.At(m.now(), m.loc),
	}, nil, nil
}

func (m *Manager) GenerateUpcoming(ctx context.Context, projectID int64) (*GenerateResult, error) {
	pass, verrs, err := m.BeginPass(ctx)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		m.log.WithField("project_id", projectID).Warnf("Generation skipped, invalid settings: %v", verrs)
		return &GenerateResult{ProjectID: projectID, ValidationErrors: verrs}, nil
	}
	return m.generate(ctx, pass, projectID)
}

// generate persists every missing cycle of the project and schedules its reminders.
// Cycles are created one by one so a failure never loses the others.
func (m *Manager) generate(ctx context.Context, pass *Pass, projectID int64) (*GenerateResult, error) {
	log := m.log.WithFields(logrus.Fields{"project_id": projectID, "pass_id": pass.ID})
	res := &GenerateResult{ProjectID: projectID}

	pr, err := m.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	if !pr.IsActive {
		log.Debug("Project is inactive, nothing to generate")
		return res, nil
	}

	gen := policy.NewGenerationPolicy(pass.Config, pass.At)
	if !gen.ShouldGenerate(pr) {
		log.WithField("frequency", pr.Frequency).Debug("Project is not eligible for generation")
		return res, nil
	}

	latest, err := m.cycleRepo.Latest(ctx, projectID)
	if err != nil {
		if !errors.Is(err, cycle.ErrCycleNotFound) {
			return nil, fmt.Errorf("failed to load latest cycle for project %d: %w", projectID, err)
		}
		latest = nil
	}
	dates, err := m.cycleRepo.ListDueDatesFrom(ctx, projectID, pass.At.Today)
	if err != nil {
		return nil, fmt.Errorf("failed to list due dates for project %d: %w", projectID, err)
	}

	drafts := gen.MissingCycles(pr, latest, cycle.NewDueDates(dates...))
	for _, d := range drafts {
		c := &cycle.Cycle{
			ProjectID:   d.ProjectID,
			DueDate:     d.DueDate,
			TotalAmount: d.Amount,
		}
		entry := log.WithField("due_date", calendar.Format(d.DueDate))
		if err := m.cycleRepo.Create(ctx, c); err != nil {
			if errors.Is(err, cycle.ErrDuplicateDueDate) {
				entry.Debug("Cycle already created by a concurrent pass")
				res.Skipped++
				continue
			}
			entry.Errorf("Failed to create billing cycle: %v", err)
			m.metrics.Failure(OpGenerate)
			res.Failed++
			continue
		}
		m.metrics.CycleGenerated(pr.Frequency)
		entry.WithField("cycle_id", c.ID).Info("Billing cycle created")
		res.Created = append(res.Created, c)
	}

	rp := policy.NewReminderPolicy(pass.Config, pass.At, nil)
	for _, c := range res.Created {
		at, ok := reminderTime(rp, pass.At, c)
		if !ok {
			continue
		}
		if err := m.dispatcher.Schedule(ctx, projectID, c.ID, at); err != nil {
			log.WithField("cycle_id", c.ID).Warnf("Failed to schedule reminders for new cycle: %v", err)
		}
	}
	return res, nil
}

// reminderTime is when a new cycle first needs reminder processing: now if it
// already has a tier, otherwise its next reminder date.
func reminderTime(rp *policy.ReminderPolicy, at policy.Moment, c *cycle.Cycle) (time.Time, bool) {
	if rp.TierFor(c) != reminder.TierNone {
		return at.Now, true
	}
	return rp.NextReminderDate(c)
}

func (m *Manager) ArchiveOld(ctx context.Context, projectID int64) (*ArchiveResult, error) {
	pass, verrs, err := m.BeginPass(ctx)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		m.log.WithField("project_id", projectID).Warnf("Archiving skipped, invalid settings: %v", verrs)
		return &ArchiveResult{ProjectID: projectID, ValidationErrors: verrs}, nil
	}
	return m.archive(ctx, pass, projectID)
}

func (m *Manager) archive(ctx context.Context, pass *Pass, projectID int64) (*ArchiveResult, error) {
	log := m.log.WithFields(logrus.Fields{"project_id": projectID, "pass_id": pass.ID})
	res := &ArchiveResult{ProjectID: projectID}

	if _, err := m.projectRepo.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	cycles, err := m.cycleRepo.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles for project %d: %w", projectID, err)
	}

	ap := policy.NewArchivePolicy(pass.Config, pass.At)
	for _, c := range ap.ArchiveEligible(cycles) {
		entry := log.WithField("cycle_id", c.ID)
		if !ap.Archive(c) {
			continue
		}
		if err := m.cycleRepo.UpdateArchiveState(ctx, c); err != nil {
			entry.Errorf("Failed to archive billing cycle: %v", err)
			m.metrics.Failure(OpArchive)
			res.Failed++
			continue
		}
		m.metrics.CycleArchived()
		entry.Info("Billing cycle archived")
		res.Archived++
	}
	return res, nil
}

func (m *Manager) ProcessReminders(ctx context.Context, projectID int64) (*ReminderResult, error) {
	pass, verrs, err := m.BeginPass(ctx)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		m.log.WithField("project_id", projectID).Warnf("Reminders skipped, invalid settings: %v", verrs)
		return &ReminderResult{ProjectID: projectID, ValidationErrors: verrs}, nil
	}
	return m.remind(ctx, pass, projectID)
}

// remind enqueues one task per cycle, tier and unpaid member. The reminder log row is
// written before the task is queued; its uniqueness per day is what deduplicates
// reminders across passes.
func (m *Manager) remind(ctx context.Context, pass *Pass, projectID int64) (*ReminderResult, error) {
	log := m.log.WithFields(logrus.Fields{"project_id": projectID, "pass_id": pass.ID})
	res := &ReminderResult{ProjectID: projectID, ByTier: map[reminder.Tier]int{}}

	rules := policy.NewReminderPolicy(pass.Config, pass.At, nil)
	if verrs := rules.ValidateRules(); len(verrs) > 0 {
		log.Warnf("Reminders skipped, invalid reminder offsets: %v", verrs)
		res.ValidationErrors = verrs
		return res, nil
	}

	pr, err := m.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	cycles, err := m.cycleRepo.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles for project %d: %w", projectID, err)
	}
	logs, err := m.reminderLogs.ListByProject(ctx, projectID, calendar.AddDays(pass.At.Today, -historyLookbackDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder history for project %d: %w", projectID, err)
	}

	rp := policy.NewReminderPolicy(pass.Config, pass.At, reminder.NewSentLog(logs))
	for _, c := range cycles {
		if !rp.ShouldSend(c, pr) {
			continue
		}
		data := rp.ReminderData(c, pr)
		entry := log.WithFields(logrus.Fields{"cycle_id": c.ID, "tier": data.Tier})
		if !overrideAllows(pr.ReminderOverride, data) {
			entry.Debug("Reminder held back by project override")
			res.Suppressed++
			continue
		}
		for _, member := range data.Recipients {
			m.dispatchOne(ctx, pass, pr, c, data, member, entry.WithField("member_id", member.ID), res)
		}
	}
	return res, nil
}

func (m *Manager) dispatchOne(ctx context.Context, pass *Pass, pr *project.Project, c *cycle.Cycle,
	data *policy.Reminder, member *project.Member, log *logrus.Entry, res *ReminderResult) {
	entry := &reminder.Log{
		ProjectID: pr.ID,
		CycleID:   c.ID,
		Tier:      data.Tier,
		MemberID:  member.ID,
		SentOn:    pass.At.Today,
	}
	inserted, err := m.reminderLogs.Record(ctx, entry)
	if err != nil {
		log.Errorf("Failed to record reminder: %v", err)
		m.metrics.Failure(OpRemind)
		res.Failed++
		return
	}
	if !inserted {
		log.Debug("Reminder already dispatched today")
		m.metrics.ReminderDeduplicated()
		res.Deduplicated++
		return
	}

	task := &reminder.Task{
		ID:         uuid.NewString(),
		ProjectID:  pr.ID,
		CycleID:    c.ID,
		Tier:       data.Tier,
		MemberID:   member.ID,
		ChatID:     member.ChatID,
		Message:    data.Message,
		EnqueuedAt: pass.At.Now,
	}
	if err := m.dispatcher.Enqueue(ctx, task); err != nil {
		log.Errorf("Failed to enqueue reminder: %v", err)
		if errDel := m.reminderLogs.Delete(ctx, entry.ID); errDel != nil {
			log.Errorf("Failed to roll back reminder log %d: %v", entry.ID, errDel)
		}
		m.metrics.Failure(OpRemind)
		res.Failed++
		return
	}
	m.metrics.ReminderDispatched(data.Tier)
	log.Info("Reminder dispatched")
	res.Dispatched++
	res.ByTier[data.Tier]++
}

// overrideAllows applies a project's reminder override to a classified reminder.
func overrideAllows(o *project.ReminderOverride, r *policy.Reminder) bool {
	if o == nil {
		return true
	}
	if o.MaxLevel > 0 && r.Tier.Rank() > o.MaxLevel {
		return false
	}
	if r.Tier == reminder.TierGentle && o.DaysBefore >= 0 && r.DaysUntilDue > o.DaysBefore {
		return false
	}
	return true
}

// Statistics summarizes a project's cycles. It never changes anything.
func (m *Manager) Statistics(ctx context.Context, projectID int64) (*Statistics, error) {
	pass, verrs, err := m.BeginPass(ctx)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		return &Statistics{ProjectID: projectID, ValidationErrors: verrs}, nil
	}

	if _, err := m.projectRepo.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	cycles, err := m.cycleRepo.ListByProject(ctx, projectID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles for project %d: %w", projectID, err)
	}
	return summarize(projectID, cycles, pass), nil
}

func summarize(projectID int64, cycles []*cycle.Cycle, pass *Pass) *Statistics {
	today := pass.At.Today
	st := &Statistics{
		ProjectID:         projectID,
		Total:             len(cycles),
		GenerationEndDate: policy.NewGenerationPolicy(pass.Config, pass.At).GenerationEndDate(),
		ArchiveCutoffDate: policy.NewArchivePolicy(pass.Config, pass.At).CutoffDate(),
	}
	for _, c := range cycles {
		if st.LatestDueDate == nil || c.DueDate.After(*st.LatestDueDate) {
			due := c.DueDate
			st.LatestDueDate = &due
		}
		if c.Archived {
			st.Archived++
			continue
		}
		st.Active++
		switch c.Status() {
		case cycle.StatusPaid:
			st.Paid++
		case cycle.StatusPartial:
			st.Partial++
		default:
			st.Unpaid++
		}
		if c.IsDueSoon(today, pass.Config.DueSoonDays) {
			st.DueSoon++
		}
		if c.IsOverdue(today) {
			st.Overdue++
		}
		st.Outstanding = st.Outstanding.Add(c.AmountRemaining())
	}
	return st
}
