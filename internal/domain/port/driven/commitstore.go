package driven

import (
	"context"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// CommitFilter narrows List results. Zero values mean "no filter".
type CommitFilter struct {
	RepositoryID int64
	AuthorEmail  string
	Since        time.Time
	Until        time.Time
}

// CommitStore defines the driven port for commit persistence. Upsert is
// keyed on (sha, repository_id): the same commit re-reported by overlapping
// push events updates the existing row instead of erroring.
type CommitStore interface {
	Upsert(ctx context.Context, commit model.Commit) error
	GetBySHA(ctx context.Context, repositoryID int64, sha string) (*model.Commit, error)
	// List returns commits ordered by committed_at descending.
	List(ctx context.Context, filter CommitFilter, limit, offset int) ([]model.Commit, error)
}
