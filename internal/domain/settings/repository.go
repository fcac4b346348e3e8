package settings

import (
	"context"
	"errors"
)

var (
	ErrSettingsNotFound = errors.New("lifecycle settings not found")
	// ErrSettingsAlreadyExist rejects creating a second settings row.
	ErrSettingsAlreadyExist = errors.New("lifecycle settings already exist")
)

// Repository persists the settings singleton.
type Repository interface {
	Get(ctx context.Context) (*Config, error)
	Create(ctx context.Context, cfg *Config) error
	Update(ctx context.Context, cfg *Config) error
}
