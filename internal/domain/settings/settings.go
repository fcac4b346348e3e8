// Package settings holds the lifecycle settings singleton: every tunable threshold the
// generation, archive and reminder policies read. The value is loaded once at the start
// of a pass and handed to the policies explicitly.
package settings

import (
	"time"

	"billing_cycle_bot/internal/domain/project"
)

// SingletonID is the only row ID the settings table accepts.
const SingletonID = 1

// Config is the lifecycle settings singleton.
// Corresponds to the 'lifecycle_settings' table.
type Config struct {
	ID int32 `yaml:"-"`

	GenerationHorizonMonths  int `yaml:"generation_horizon_months" validate:"min=1,max=12"`
	ArchivingThresholdMonths int `yaml:"archiving_threshold_months" validate:"min=1,max=24"`
	DueSoonDays              int `yaml:"due_soon_days" validate:"min=1,max=30"`
	GracePeriodDays          int `yaml:"grace_period_days" validate:"min=0,max=30"`

	Reminders ReminderOffsets `yaml:"reminders"`

	SupportedFrequencies []project.Frequency `yaml:"supported_frequencies" validate:"min=1,dive,oneof=daily weekly monthly quarterly yearly"`
	DefaultFrequencies   []project.Frequency `yaml:"default_frequencies" validate:"dive,oneof=daily weekly monthly quarterly yearly"`

	AutoGenerate     bool `yaml:"auto_generate"`
	AutoArchive      bool `yaml:"auto_archive"`
	RemindersEnabled bool `yaml:"reminders_enabled"`

	UpdatedAt time.Time `yaml:"-"`
}

// ReminderOffsets are the day thresholds of the escalation tiers.
type ReminderOffsets struct {
	GentleDaysBefore    int `yaml:"gentle_days_before" validate:"min=0,max=30"`
	StandardDaysOverdue int `yaml:"standard_days_overdue" validate:"min=0,max=90"`
	UrgentDaysOverdue   int `yaml:"urgent_days_overdue" validate:"min=0,max=90"`
	FinalDaysOverdue    int `yaml:"final_days_overdue" validate:"min=0,max=180"`
}

// Default returns the settings a fresh installation starts with.
func Default() *Config {
	return &Config{
		ID:                       SingletonID,
		GenerationHorizonMonths:  3,
		ArchivingThresholdMonths: 6,
		DueSoonDays:              7,
		GracePeriodDays:          7,
		Reminders: ReminderOffsets{
			GentleDaysBefore:    3,
			StandardDaysOverdue: 1,
			UrgentDaysOverdue:   7,
			FinalDaysOverdue:    14,
		},
		SupportedFrequencies: append([]project.Frequency(nil), project.AllFrequencies...),
		DefaultFrequencies:   []project.Frequency{project.FrequencyMonthly},
		AutoGenerate:         true,
		AutoArchive:          true,
		RemindersEnabled:     true,
	}
}

// Supports reports whether f is in the supported frequency set.
func (c *Config) Supports(f project.Frequency) bool {
	for _, s := range c.SupportedFrequencies {
		if s == f {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can apply updates without touching the original.
func (c *Config) Clone() *Config {
	cp := *c
	cp.SupportedFrequencies = append([]project.Frequency(nil), c.SupportedFrequencies...)
	cp.DefaultFrequencies = append([]project.Frequency(nil), c.DefaultFrequencies...)
	return &cp
}
