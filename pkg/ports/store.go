package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// ProgressStore persists reading progress, enabling stop and resume.
// It never stores graph structure.
type ProgressStore interface {
	// Save persists the progress for a given session ID.
	Save(ctx context.Context, sessionID string, progress *domain.Progress) error

	// Load retrieves the progress for a given session ID.
	// Returns domain.ErrProgressNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Progress, error)

	// Delete removes the progress for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns all active session IDs.
	List(ctx context.Context) ([]string, error)
}
