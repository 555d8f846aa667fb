package driven

import (
	"context"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// IssueFilter narrows List results. Zero values mean "no filter".
type IssueFilter struct {
	RepositoryID int64
	State        model.IssueState
	Author       string
	Label        string
}

// IssueStore defines the driven port for issue persistence. Upsert is keyed
// on the host-global GitHubID; each upsert replaces the label set wholesale
// with the incoming event's labels.
type IssueStore interface {
	Upsert(ctx context.Context, issue model.Issue) error
	GetByGitHubID(ctx context.Context, githubID int64) (*model.Issue, error)
	// List returns issues ordered by opened_at descending.
	List(ctx context.Context, filter IssueFilter, limit, offset int) ([]model.Issue, error)
}
