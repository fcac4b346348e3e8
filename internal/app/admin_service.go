package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/settings"
	"billing_cycle_bot/internal/policy"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Application-level errors for administrative actions
var ErrReasonRequired = fmt.Errorf("an audit reason is required")
var ErrInvalidAmount = fmt.Errorf("amount must be positive")

// AdminService performs administrative corrections. Unlike batch passes, a missing
// cycle or project is a hard failure here.
type AdminService struct {
	settingsRepo settings.Repository
	projectRepo  project.Repository
	cycleRepo    cycle.Repository
	log          *logrus.Entry
	loc          *time.Location
	now          func() time.Time
}

func NewAdminService(sr settings.Repository, pr project.Repository, cr cycle.Repository, log *logrus.Entry, loc *time.Location) *AdminService {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminService{
		settingsRepo: sr,
		projectRepo:  pr,
		cycleRepo:    cr,
		log:          log.WithField("component", "admin"),
		loc:          loc,
		now:          time.Now,
	}
}

func (s *AdminService) moment() policy.Moment {
	return policy.At(s.now(), s.loc)
}

// CurrentConfig returns the stored settings singleton.
func (s *AdminService) CurrentConfig(ctx context.Context) (*settings.Config, error) {
	cfg, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lifecycle settings: %w", err)
	}
	return cfg, nil
}

// UpdateConfig applies u to the settings singleton, creating it from the defaults when
// it does not exist yet. Invalid results are never stored, even partially.
func (s *AdminService) UpdateConfig(ctx context.Context, u settings.Update) (*ConfigResult, error) {
	current, err := s.settingsRepo.Get(ctx)
	create := false
	if err != nil {
		if !errors.Is(err, settings.ErrSettingsNotFound) {
			return nil, fmt.Errorf("failed to load lifecycle settings: %w", err)
		}
		create = true
	}

	base := current
	if create {
		base = settings.Default()
	}
	next := base.Apply(u)

	verrs := next.Validate()
	verrs = append(verrs, policy.NewReminderPolicy(next, s.moment(), nil).ValidateRules()...)
	if len(verrs) > 0 {
		s.log.Infof("Settings update rejected: %v", verrs)
		return &ConfigResult{Config: current, ValidationErrors: verrs}, nil
	}

	next.ID = settings.SingletonID
	next.UpdatedAt = s.now()
	if create {
		err = s.settingsRepo.Create(ctx, next)
	} else {
		err = s.settingsRepo.Update(ctx, next)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save lifecycle settings: %w", err)
	}
	s.log.WithField("created", create).Info("Lifecycle settings saved")
	return &ConfigResult{Config: next, Created: create}, nil
}

func (s *AdminService) loadCycle(ctx context.Context, cycleID int64) (*cycle.Cycle, error) {
	c, err := s.cycleRepo.GetByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, cycle.ErrCycleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get billing cycle %d: %w", cycleID, err)
	}
	return c, nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrReasonRequired
	}
	return reason, nil
}

// ForceArchive archives a cycle regardless of its age or payment state. It reports
// false when the cycle is already archived.
func (s *AdminService) ForceArchive(ctx context.Context, cycleID int64, reason string) (bool, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return false, err
	}
	c, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return false, err
	}

	// Forced archiving ignores the lifecycle settings.
	ap := policy.NewArchivePolicy(nil, s.moment())
	if !ap.ForceArchive(c, reason) {
		s.log.WithField("cycle_id", cycleID).Info("Cycle is already archived")
		return false, nil
	}
	if err := s.cycleRepo.UpdateArchiveState(ctx, c); err != nil {
		return false, fmt.Errorf("failed to archive billing cycle %d: %w", cycleID, err)
	}
	s.log.WithFields(logrus.Fields{"cycle_id": cycleID, "reason": reason}).Info("Cycle archived by administrator")
	return true, nil
}

// Unarchive restores an archived cycle. It reports false when the cycle is not
// archived or lies beyond the retention boundary.
func (s *AdminService) Unarchive(ctx context.Context, cycleID int64, reason string) (bool, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return false, err
	}
	c, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return false, err
	}

	ap := policy.NewArchivePolicy(nil, s.moment())
	if !ap.Unarchive(c, reason) {
		s.log.WithField("cycle_id", cycleID).Info("Cycle cannot be unarchived")
		return false, nil
	}
	if err := s.cycleRepo.UpdateArchiveState(ctx, c); err != nil {
		return false, fmt.Errorf("failed to unarchive billing cycle %d: %w", cycleID, err)
	}
	s.log.WithFields(logrus.Fields{"cycle_id": cycleID, "reason": reason}).Info("Cycle unarchived by administrator")
	return true, nil
}

// AdjustAmount corrects the amount owed for a cycle. The first adjustment keeps the
// original amount for audit.
func (s *AdminService) AdjustAmount(ctx context.Context, cycleID int64, amount decimal.Decimal, reason string) (*cycle.Cycle, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	c, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	c.AdjustAmount(amount.Round(2), reason, s.now())
	if err := s.cycleRepo.UpdateAdjustment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to adjust amount of billing cycle %d: %w", cycleID, err)
	}
	s.log.WithFields(logrus.Fields{"cycle_id": cycleID, "amount": c.TotalAmount.String()}).Info("Cycle amount adjusted")
	return c, nil
}

// AdjustDueDate moves a cycle to another day. A day already used by another cycle of
// the project fails with cycle.ErrDuplicateDueDate.
func (s *AdminService) AdjustDueDate(ctx context.Context, cycleID int64, date time.Time, reason string) (*cycle.Cycle, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if calendar.Day(date).Equal(c.DueDate) {
		return c, nil
	}

	c.AdjustDueDate(date, reason, s.now())
	if err := s.cycleRepo.UpdateAdjustment(ctx, c); err != nil {
		if errors.Is(err, cycle.ErrDuplicateDueDate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust due date of billing cycle %d: %w", cycleID, err)
	}
	s.log.WithFields(logrus.Fields{"cycle_id": cycleID, "due_date": calendar.Format(c.DueDate)}).Info("Cycle due date adjusted")
	return c, nil
}

// CreateCycle adds a single cycle on date for a project, provided the date falls in
// the generation window and has no cycle yet.
func (s *AdminService) CreateCycle(ctx context.Context, projectID int64, date time.Time) (*CreateCycleResult, error) {
	cfg, err := s.settingsRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrSettingsNotFound) {
			return &CreateCycleResult{ValidationErrors: settings.ValidationErrors{notConfigured}}, nil
		}
		return nil, fmt.Errorf("failed to load lifecycle settings: %w", err)
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		return &CreateCycleResult{ValidationErrors: verrs}, nil
	}

	pr, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}

	at := s.moment()
	dates, err := s.cycleRepo.ListDueDatesFrom(ctx, projectID, at.Today)
	if err != nil {
		return nil, fmt.Errorf("failed to list due dates for project %d: %w", projectID, err)
	}
	gen := policy.NewGenerationPolicy(cfg, at)
	if !gen.NeedsCycleForDate(date, cycle.NewDueDates(dates...)) {
		return &CreateCycleResult{}, nil
	}

	c := &cycle.Cycle{ProjectID: pr.ID, DueDate: calendar.Day(date), TotalAmount: pr.Cost}
	if err := s.cycleRepo.Create(ctx, c); err != nil {
		if errors.Is(err, cycle.ErrDuplicateDueDate) {
			return &CreateCycleResult{}, nil
		}
		return nil, fmt.Errorf("failed to create billing cycle: %w", err)
	}
	s.log.WithFields(logrus.Fields{"project_id": projectID, "cycle_id": c.ID}).Info("Cycle created by administrator")
	return &CreateCycleResult{Cycle: c, Created: true}, nil
}
