package driven

import (
	"context"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// PullRequestFilter narrows List results. Zero values mean "no filter".
type PullRequestFilter struct {
	RepositoryID int64
	State        model.PRState
	Author       string
}

// PullRequestStore defines the driven port for pull request persistence.
// Upsert is keyed on the host-global GitHubID. Implementations must apply
// the last-advances-only-if-unset policy to closed_at/merged_at and must
// never regress state once merged has been recorded, regardless of the
// order in which events arrive.
type PullRequestStore interface {
	Upsert(ctx context.Context, pr model.PullRequest) error
	GetByGitHubID(ctx context.Context, githubID int64) (*model.PullRequest, error)
	// List returns pull requests ordered by opened_at descending.
	List(ctx context.Context, filter PullRequestFilter, limit, offset int) ([]model.PullRequest, error)
}
