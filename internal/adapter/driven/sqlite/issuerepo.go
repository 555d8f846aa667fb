package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueStore = (*IssueRepo)(nil)

// IssueRepo is the SQLite implementation of the IssueStore port interface.
// Labels are serialized as a JSON array in the TEXT column.
type IssueRepo struct {
	db *DB
}

// NewIssueRepo creates a new IssueRepo backed by the given DB.
func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

// Upsert inserts or updates an issue keyed on github_id. The label set is
// replaced wholesale with the incoming event's labels, never unioned with
// what was stored before. closed_at only advances when currently unset.
func (r *IssueRepo) Upsert(ctx context.Context, issue model.Issue) error {
	const query = `
		INSERT INTO issues (
			repository_id, webhook_event_id, github_id, number, title, state, author,
			labels, url, opened_at, closed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(github_id) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			state = excluded.state,
			author = excluded.author,
			labels = excluded.labels,
			url = excluded.url,
			closed_at = COALESCE(issues.closed_at, excluded.closed_at),
			updated_at = excluded.updated_at
	`

	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	now := time.Now().UTC()

	_, err = r.db.Writer.ExecContext(ctx, query,
		issue.RepositoryID, issue.WebhookEventID, issue.GitHubID, issue.Number,
		issue.Title, string(issue.State), issue.Author, string(labelsJSON), issue.URL,
		issue.OpenedAt.UTC(), bindNullTime(issue.ClosedAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert issue #%d (%d): %w", issue.Number, issue.GitHubID, err)
	}

	return nil
}

// GetByGitHubID retrieves an issue by its GitHub ID. Returns nil, nil if the
// issue does not exist.
func (r *IssueRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.Issue, error) {
	const query = selectIssue + ` WHERE github_id = ?`

	issue, err := scanIssue(r.db.Reader.QueryRowContext(ctx, query, githubID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", githubID, err)
	}

	return issue, nil
}

// List returns issues matching the filter, newest first by open time. The
// label filter matches issues whose stored set contains the given label.
func (r *IssueRepo) List(ctx context.Context, filter driven.IssueFilter, limit, offset int) ([]model.Issue, error) {
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
	if filter.Label != "" {
		// Labels are a JSON array of strings; EXISTS over json_each matches
		// the exact label without resorting to LIKE on the serialized text.
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(issues.labels) WHERE json_each.value = ?)")
		args = append(args, filter.Label)
	}

	query := selectIssue
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY opened_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	return issues, nil
}

const selectIssue = `
	SELECT id, repository_id, webhook_event_id, github_id, number, title, state, author,
	       labels, url, opened_at, closed_at, created_at, updated_at
	FROM issues`

func scanIssue(s scanner) (*model.Issue, error) {
	var issue model.Issue
	var state string
	var labelsJSON string
	var openedAt, createdAt, updatedAt string
	var closedAt sql.NullString

	err := s.Scan(
		&issue.ID, &issue.RepositoryID, &issue.WebhookEventID, &issue.GitHubID,
		&issue.Number, &issue.Title, &state, &issue.Author, &labelsJSON, &issue.URL,
		&openedAt, &closedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.State = model.IssueState(state)

	if err := json.Unmarshal([]byte(labelsJSON), &issue.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}

	issue.OpenedAt, err = parseTime(openedAt)
	if err != nil {
		return nil, fmt.Errorf("parse opened_at: %w", err)
	}

	issue.ClosedAt, err = parseNullTime(closedAt)
	if err != nil {
		return nil, fmt.Errorf("parse closed_at: %w", err)
	}

	issue.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	issue.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &issue, nil
}
