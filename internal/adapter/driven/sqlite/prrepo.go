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
var _ driven.PullRequestStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PullRequestStore port interface.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

// Upsert inserts or updates a pull request keyed on github_id. Deliveries
// arrive in no guaranteed order, so the conflict path encodes the state
// policy directly:
//
//   - closed_at and merged_at only advance when currently unset;
//   - state becomes "merged" as soon as either side carries a merged_at,
//     and can never regress afterwards;
//   - otherwise state follows the incoming event.
func (r *PRRepo) Upsert(ctx context.Context, pr model.PullRequest) error {
	const query = `
		INSERT INTO pull_requests (
			repository_id, webhook_event_id, github_id, number, title, state, author,
			base_branch, head_branch, url, opened_at, closed_at, merged_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(github_id) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			author = excluded.author,
			base_branch = excluded.base_branch,
			head_branch = excluded.head_branch,
			url = excluded.url,
			closed_at = COALESCE(pull_requests.closed_at, excluded.closed_at),
			merged_at = COALESCE(pull_requests.merged_at, excluded.merged_at),
			state = CASE
				WHEN pull_requests.merged_at IS NOT NULL OR excluded.merged_at IS NOT NULL THEN 'merged'
				ELSE excluded.state
			END,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()

	_, err := r.db.Writer.ExecContext(ctx, query,
		pr.RepositoryID, pr.WebhookEventID, pr.GitHubID, pr.Number, pr.Title,
		string(pr.State), pr.Author, pr.BaseBranch, pr.HeadBranch, pr.URL,
		pr.OpenedAt.UTC(), bindNullTime(pr.ClosedAt), bindNullTime(pr.MergedAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert pull request #%d (%d): %w", pr.Number, pr.GitHubID, err)
	}

	return nil
}

// GetByGitHubID retrieves a pull request by its GitHub ID. Returns nil, nil
// if the pull request does not exist.
func (r *PRRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.PullRequest, error) {
	const query = selectPR + ` WHERE github_id = ?`

	pr, err := scanPR(r.db.Reader.QueryRowContext(ctx, query, githubID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", githubID, err)
	}

	return pr, nil
}

// List returns pull requests matching the filter, newest first by open time.
func (r *PRRepo) List(ctx context.Context, filter driven.PullRequestFilter, limit, offset int) ([]model.PullRequest, error) {
	var conds []string
	var args []any

	if filter.RepositoryID != 0 {
		conds = append(conds, "repository_id = ?")
		args = append(args, filter.RepositoryID)
	}
	if filter.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Author != "" {
		conds = append(conds, "author = ?")
		args = append(args, filter.Author)
	}

	query := selectPR
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY opened_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

const selectPR = `
	SELECT id, repository_id, webhook_event_id, github_id, number, title, state, author,
	       base_branch, head_branch, url, opened_at, closed_at, merged_at, created_at, updated_at
	FROM pull_requests`

func scanPR(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var state string
	var openedAt, createdAt, updatedAt string
	var closedAt, mergedAt sql.NullString

	err := s.Scan(
		&pr.ID, &pr.RepositoryID, &pr.WebhookEventID, &pr.GitHubID, &pr.Number,
		&pr.Title, &state, &pr.Author, &pr.BaseBranch, &pr.HeadBranch, &pr.URL,
		&openedAt, &closedAt, &mergedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)

	pr.OpenedAt, err = parseTime(openedAt)
	if err != nil {
		return nil, fmt.Errorf("parse opened_at: %w", err)
	}

	pr.ClosedAt, err = parseNullTime(closedAt)
	if err != nil {
		return nil, fmt.Errorf("parse closed_at: %w", err)
	}

	pr.MergedAt, err = parseNullTime(mergedAt)
	if err != nil {
		return nil, fmt.Errorf("parse merged_at: %w", err)
	}

	pr.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	pr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &pr, nil
}
