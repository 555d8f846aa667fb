package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepositoryStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

// Upsert inserts the repository or, when a row with the same github_id
// already exists, updates its mutable descriptive fields in place. The
// insert-or-update is a single statement so concurrent deliveries for the
// same repository cannot race a check-then-act window.
func (r *RepoRepo) Upsert(ctx context.Context, repo model.Repository) (int64, error) {
	const query = `
		INSERT INTO repositories (github_id, name, full_name, owner, description, url, is_private, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(github_id) DO UPDATE SET
			name = excluded.name,
			full_name = excluded.full_name,
			owner = excluded.owner,
			description = excluded.description,
			url = excluded.url,
			is_private = excluded.is_private,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := time.Now().UTC()

	isPrivate := 0
	if repo.IsPrivate {
		isPrivate = 1
	}

	var id int64
	err := r.db.Writer.QueryRowContext(ctx, query,
		repo.GitHubID, repo.Name, repo.FullName, repo.Owner,
		repo.Description, repo.URL, isPrivate, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}

	return id, nil
}

// GetByGitHubID retrieves a repository by its GitHub ID. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.Repository, error) {
	const query = selectRepository + ` WHERE github_id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, githubID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", githubID, err)
	}

	return repo, nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	const query = selectRepository + ` WHERE full_name = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// List returns repositories ordered by most recently updated.
func (r *RepoRepo) List(ctx context.Context, limit, offset int) ([]model.Repository, error) {
	const query = selectRepository + ` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

const selectRepository = `
	SELECT id, github_id, name, full_name, owner, description, url, is_private, created_at, updated_at
	FROM repositories`

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var description sql.NullString
	var isPrivate int
	var createdAt, updatedAt string

	err := s.Scan(
		&repo.ID, &repo.GitHubID, &repo.Name, &repo.FullName, &repo.Owner,
		&description, &repo.URL, &isPrivate, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	repo.Description = description.String
	repo.IsPrivate = isPrivate != 0

	repo.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	repo.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &repo, nil
}
