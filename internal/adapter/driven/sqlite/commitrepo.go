package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommitStore = (*CommitRepo)(nil)

// CommitRepo is the SQLite implementation of the CommitStore port interface.
type CommitRepo struct {
	db *DB
}

// NewCommitRepo creates a new CommitRepo backed by the given DB.
func NewCommitRepo(db *DB) *CommitRepo {
	return &CommitRepo{db: db}
}

// Upsert inserts or updates a commit keyed on (sha, repository_id). Merges
// and force-pushes re-report commits already seen; the conflict path updates
// the descriptive fields with the latest values instead of erroring.
// webhook_event_id keeps pointing at the delivery that first introduced the
// commit.
func (r *CommitRepo) Upsert(ctx context.Context, commit model.Commit) error {
	const query = `
		INSERT INTO commits (
			repository_id, webhook_event_id, sha, message, author_name, author_email,
			committer_name, committer_email, committed_at, url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha, repository_id) DO UPDATE SET
			message = excluded.message,
			author_name = excluded.author_name,
			author_email = excluded.author_email,
			committer_name = excluded.committer_name,
			committer_email = excluded.committer_email,
			committed_at = excluded.committed_at,
			url = excluded.url
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		commit.RepositoryID, commit.WebhookEventID, commit.SHA, commit.Message,
		commit.AuthorName, commit.AuthorEmail, commit.CommitterName, commit.CommitterEmail,
		commit.CommittedAt.UTC(), commit.URL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert commit %s: %w", commit.SHA, err)
	}

	return nil
}

// GetBySHA retrieves one commit by repository and SHA. Returns nil, nil if
// the commit does not exist.
func (r *CommitRepo) GetBySHA(ctx context.Context, repositoryID int64, sha string) (*model.Commit, error) {
	const query = selectCommit + ` WHERE repository_id = ? AND sha = ?`

	commit, err := scanCommit(r.db.Reader.QueryRowContext(ctx, query, repositoryID, sha))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}

	return commit, nil
}

// List returns commits matching the filter, newest first by commit time.
func (r *CommitRepo) List(ctx context.Context, filter driven.CommitFilter, limit, offset int) ([]model.Commit, error) {
	var conds []string
	var args []any

	if filter.RepositoryID != 0 {
		conds = append(conds, "repository_id = ?")
		args = append(args, filter.RepositoryID)
	}
	if filter.AuthorEmail != "" {
		conds = append(conds, "author_email = ?")
		args = append(args, filter.AuthorEmail)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "committed_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "committed_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := selectCommit
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY committed_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		commit, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		commits = append(commits, *commit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}

	return commits, nil
}

const selectCommit = `
	SELECT id, repository_id, webhook_event_id, sha, message, author_name, author_email,
	       committer_name, committer_email, committed_at, url, created_at
	FROM commits`

func scanCommit(s scanner) (*model.Commit, error) {
	var commit model.Commit
	var committedAt, createdAt string

	err := s.Scan(
		&commit.ID, &commit.RepositoryID, &commit.WebhookEventID, &commit.SHA,
		&commit.Message, &commit.AuthorName, &commit.AuthorEmail,
		&commit.CommitterName, &commit.CommitterEmail, &committedAt, &commit.URL, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	commit.CommittedAt, err = parseTime(committedAt)
	if err != nil {
		return nil, fmt.Errorf("parse committed_at: %w", err)
	}

	commit.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &commit, nil
}
