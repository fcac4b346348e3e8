package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/settings"
)

const settingsColumns = `generation_horizon_months, archiving_threshold_months, due_soon_days, grace_period_days,
	gentle_days_before, standard_days_overdue, urgent_days_overdue, final_days_overdue,
	supported_frequencies, default_frequencies, auto_generate, auto_archive, reminders_enabled, updated_at`

type SettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (*settings.Config, error) {
	query := `SELECT id, ` + settingsColumns + ` FROM lifecycle_settings WHERE id = ?`
	cfg := settings.Config{}
	var supported, defaults string
	err := r.db.queryRow(ctx, query, settings.SingletonID).Scan(
		&cfg.ID,
		&cfg.GenerationHorizonMonths, &cfg.ArchivingThresholdMonths, &cfg.DueSoonDays, &cfg.GracePeriodDays,
		&cfg.Reminders.GentleDaysBefore, &cfg.Reminders.StandardDaysOverdue,
		&cfg.Reminders.UrgentDaysOverdue, &cfg.Reminders.FinalDaysOverdue,
		&supported, &defaults,
		&cfg.AutoGenerate, &cfg.AutoArchive, &cfg.RemindersEnabled, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settings.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("error getting lifecycle settings: %w", err)
	}

	if cfg.SupportedFrequencies, err = decodeFrequencies(supported); err != nil {
		return nil, fmt.Errorf("error decoding supported frequencies: %w", err)
	}
	if cfg.DefaultFrequencies, err = decodeFrequencies(defaults); err != nil {
		return nil, fmt.Errorf("error decoding default frequencies: %w", err)
	}
	return &cfg, nil
}

func (r *SettingsRepository) Create(ctx context.Context, cfg *settings.Config) error {
	query := `INSERT INTO lifecycle_settings (id, ` + settingsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.exec(ctx, query, append([]interface{}{settings.SingletonID}, settingsArgs(cfg)...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return settings.ErrSettingsAlreadyExist
		}
		return fmt.Errorf("error creating lifecycle settings: %w", err)
	}
	cfg.ID = settings.SingletonID
	return nil
}

func (r *SettingsRepository) Update(ctx context.Context, cfg *settings.Config) error {
	query := `UPDATE lifecycle_settings SET
		generation_horizon_months = ?, archiving_threshold_months = ?, due_soon_days = ?, grace_period_days = ?,
		gentle_days_before = ?, standard_days_overdue = ?, urgent_days_overdue = ?, final_days_overdue = ?,
		supported_frequencies = ?, default_frequencies = ?, auto_generate = ?, auto_archive = ?,
		reminders_enabled = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.exec(ctx, query, append(settingsArgs(cfg), settings.SingletonID)...)
	if err != nil {
		return fmt.Errorf("error updating lifecycle settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated lifecycle settings: %w", err)
	}
	if n == 0 {
		return settings.ErrSettingsNotFound
	}
	return nil
}

func settingsArgs(cfg *settings.Config) []interface{} {
	return []interface{}{
		cfg.GenerationHorizonMonths, cfg.ArchivingThresholdMonths, cfg.DueSoonDays, cfg.GracePeriodDays,
		cfg.Reminders.GentleDaysBefore, cfg.Reminders.StandardDaysOverdue,
		cfg.Reminders.UrgentDaysOverdue, cfg.Reminders.FinalDaysOverdue,
		encodeFrequencies(cfg.SupportedFrequencies), encodeFrequencies(cfg.DefaultFrequencies),
		cfg.AutoGenerate, cfg.AutoArchive, cfg.RemindersEnabled, cfg.UpdatedAt,
	}
}

// Frequency lists are stored comma separated and parsed back into typed values.
func encodeFrequencies(fs []project.Frequency) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func decodeFrequencies(s string) ([]project.Frequency, error) {
	if strings.TrimSpace(s) == "" {
		return []project.Frequency{}, nil
	}
	var out []project.Frequency
	for _, part := range strings.Split(s, ",") {
		f, err := project.ParseFrequency(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
