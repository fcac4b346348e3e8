package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"billing_cycle_bot/internal/domain/settings"

	"gopkg.in/yaml.v3"
)

// LoadPolicyFile reads a YAML document of lifecycle settings overrides, e.g.
//
//	generation_horizon_months: 6
//	urgent_days_overdue: 10
//	supported_frequencies: [monthly, yearly]
//
// Keys that are not settings are rejected. Omitted keys keep their stored value.
func LoadPolicyFile(path string) (settings.Update, error) {
	f, err := os.Open(path)
	if err != nil {
		return settings.Update{}, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()
	return DecodePolicy(f)
}

// DecodePolicy decodes a policy document from r.
func DecodePolicy(r io.Reader) (settings.Update, error) {
	var u settings.Update
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&u); err != nil {
		if errors.Is(err, io.EOF) {
			return settings.Update{}, nil
		}
		return settings.Update{}, fmt.Errorf("invalid policy file: %w", err)
	}
	return u, nil
}
