package project

import (
	"context"
	"errors"
)

var ErrProjectNotFound = errors.New("project not found")

// Repository defines the read operations the lifecycle core needs on projects.
// Project CRUD itself belongs to the surrounding application.
type Repository interface {
	// GetByID returns the project with its members loaded.
	GetByID(ctx context.Context, id int64) (*Project, error)
	ListActiveIDs(ctx context.Context) ([]int64, error)
	ListMembers(ctx context.Context, projectID int64) ([]*Member, error)
}
