package settings

import "billing_cycle_bot/internal/domain/project"

// Update carries the fields an administrator wants to change. Nil fields are kept.
type Update struct {
	GenerationHorizonMonths  *int                `yaml:"generation_horizon_months"`
	ArchivingThresholdMonths *int                `yaml:"archiving_threshold_months"`
	DueSoonDays              *int                `yaml:"due_soon_days"`
	GracePeriodDays          *int                `yaml:"grace_period_days"`
	GentleDaysBefore         *int                `yaml:"gentle_days_before"`
	StandardDaysOverdue      *int                `yaml:"standard_days_overdue"`
	UrgentDaysOverdue        *int                `yaml:"urgent_days_overdue"`
	FinalDaysOverdue         *int                `yaml:"final_days_overdue"`
	SupportedFrequencies     []project.Frequency `yaml:"supported_frequencies"`
	DefaultFrequencies       []project.Frequency `yaml:"default_frequencies"`
	AutoGenerate             *bool               `yaml:"auto_generate"`
	AutoArchive              *bool               `yaml:"auto_archive"`
	RemindersEnabled         *bool               `yaml:"reminders_enabled"`
}

// Apply returns a copy of c with the update applied; c itself is not modified.
func (c *Config) Apply(u Update) *Config {
	next := c.Clone()
	setInt(&next.GenerationHorizonMonths, u.GenerationHorizonMonths)
	setInt(&next.ArchivingThresholdMonths, u.ArchivingThresholdMonths)
	setInt(&next.DueSoonDays, u.DueSoonDays)
	setInt(&next.GracePeriodDays, u.GracePeriodDays)
	setInt(&next.Reminders.GentleDaysBefore, u.GentleDaysBefore)
	setInt(&next.Reminders.StandardDaysOverdue, u.StandardDaysOverdue)
	setInt(&next.Reminders.UrgentDaysOverdue, u.UrgentDaysOverdue)
	setInt(&next.Reminders.FinalDaysOverdue, u.FinalDaysOverdue)
	if u.SupportedFrequencies != nil {
		next.SupportedFrequencies = append([]project.Frequency(nil), u.SupportedFrequencies...)
	}
	if u.DefaultFrequencies != nil {
		next.DefaultFrequencies = append([]project.Frequency(nil), u.DefaultFrequencies...)
	}
	setBool(&next.AutoGenerate, u.AutoGenerate)
	setBool(&next.AutoArchive, u.AutoArchive)
	setBool(&next.RemindersEnabled, u.RemindersEnabled)
	return next
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
