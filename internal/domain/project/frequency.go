package project

import (
	"fmt"
	"strings"
)

// Frequency is the billing period of a project.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// AllFrequencies lists every frequency the system knows about, shortest period first.
var AllFrequencies = []Frequency{
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// Known reports whether f is one of AllFrequencies.
func (f Frequency) Known() bool {
	for _, k := range AllFrequencies {
		if f == k {
			return true
		}
	}
	return false
}

// ParseFrequency normalizes and validates a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Known() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}
