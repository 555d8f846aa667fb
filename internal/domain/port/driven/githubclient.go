package driven

import (
	"context"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// GitHubClient defines the driven port for the GitHub REST API, used by the
// sync service to backfill repository state that webhooks may have missed.
type GitHubClient interface {
	// FetchRepository returns current repository metadata.
	FetchRepository(ctx context.Context, owner, name string) (model.Repository, error)
	// FetchRecentCommits returns the most recent default-branch commits,
	// newest first. RepositoryID and WebhookEventID are left unset; the
	// caller fills them in before persisting.
	FetchRecentCommits(ctx context.Context, owner, name string, limit int) ([]model.Commit, error)
}
