package storage

import (
	"context"

	"pagegen-backend/internal/model"
)

// Storage is the persistence gateway: per-project durable copies of the
// filtered conversation log.
type Storage interface {
	// CreateProject registers a freshly minted id. A repeated id yields ErrProjectExists.
	CreateProject(ctx context.Context, id string) error
	// GetMessages returns the stored log; unknown ids yield an empty slice.
	GetMessages(ctx context.Context, projectID string) ([]model.Message, error)
	// SaveMessages replaces the stored log wholesale.
	SaveMessages(ctx context.Context, projectID string, messages []model.Message) error

	Init() error
	Close() error
}
