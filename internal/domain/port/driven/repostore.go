package driven

import (
	"context"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// RepositoryStore defines the driven port for repository persistence.
// Upsert must be an atomic insert-or-update keyed on the repository's
// GitHubID so that concurrent deliveries for the same repository never
// create a second row.
type RepositoryStore interface {
	// Upsert inserts the repository or updates the mutable descriptive
	// fields of the existing row, and returns the local row ID either way.
	Upsert(ctx context.Context, repo model.Repository) (int64, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.Repository, error)
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	// List returns repositories ordered by most recently updated.
	List(ctx context.Context, limit, offset int) ([]model.Repository, error)
}
