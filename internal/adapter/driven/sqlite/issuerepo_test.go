package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

func makeIssue(repoID, eventID, githubID int64, labels []string) model.Issue {
	return model.Issue{
		RepositoryID:   repoID,
		WebhookEventID: eventID,
		GitHubID:       githubID,
		Number:         13,
		Title:          "Found a bug",
		State:          model.IssueStateOpen,
		Author:         "octocat",
		Labels:         labels,
		URL:            "https://github.com/octocat/hello-world/issues/13",
		OpenedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestIssueRepo_Upsert_Insert(t *testing.T) {
	db := setupTestDB(t)
	issueRepo := NewIssueRepo(db)
	ctx := context.Background()

	repoID := addTestRepo(t, db, 42, "octocat/hello-world")
	eventID := addTestEvent(t, db, "d-1", repoID)

	require.NoError(t, issueRepo.Upsert(ctx, makeIssue(repoID, eventID, 99, []string{"bug", "p1"})))

	got, err := issueRepo.GetByGitHubID(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 13, got.Number)
	assert.Equal(t, model.IssueStateOpen, got.State)
	assert.Equal(t, []string{"bug", "p1"}, got.Labels)
}

func TestIssueRepo_LabelsReplacedWholesale(t *testing.T) {
	db := setupTestDB(t)
	issueRepo := NewIssueRepo(db)
	ctx := context.Background()

	repoID := addTestRepo(t, db, 42, "octocat/hello-world")
	eventID := addTestEvent(t, db, "d-1", repoID)

	require.NoError(t, issueRepo.Upsert(ctx, makeIssue(repoID, eventID, 99, []string{"bug", "p1"})))
	require.NoError(t, issueRepo.Upsert(ctx, makeIssue(repoID, eventID, 99, []string{"wontfix"})))

	got, err := issueRepo.GetByGitHubID(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"wontfix"}, got.Labels, "labels must not be unioned with prior sets")
}

func TestIssueRepo_NilLabelsStoredAsEmptySet(t *testing.T) {
	db := setupTestDB(t)
	issueRepo := NewIssueRepo(db)
	ctx := context.Background()

	repoID := addTestRepo(t, db, 42, "octocat/hello-world")
	eventID := addTestEvent(t, db, "d-1", repoID)

	require.NoError(t, issueRepo.Upsert(ctx, makeIssue(repoID, eventID, 99, nil)))

	got, err := issueRepo.GetByGitHubID(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
}

func TestIssueRepo_ClosedAtAdvancesOnlyIfUnset(t *testing.T) {
	db := setupTestDB(t)
	issueRepo := NewIssueRepo(db)
	ctx := context.Background()

	repoID := addTestRepo(t, db, 42, "octocat/hello-world")
	eventID := addTestEvent(t, db, "d-1", repoID)

	firstClose := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	closed := makeIssue(repoID, eventID, 99, nil)
	closed.State = model.IssueStateClosed
	closed.ClosedAt = &firstClose
	require.NoError(t, issueRepo.Upsert(ctx, closed))

	laterClose := firstClose.Add(time.Hour)
	redelivered := makeIssue(repoID, eventID, 99, nil)
	redelivered.State = model.IssueStateClosed
	redelivered.ClosedAt = &laterClose
	require.NoError(t, issueRepo.Upsert(ctx, redelivered))

	got, err := issueRepo.GetByGitHubID(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(firstClose))
}

func TestIssueRepo_List_Filters(t *testing.T) {
	db := setupTestDB(t)
	issueRepo := NewIssueRepo(db)
	ctx := context.Background()

	repoID := addTestRepo(t, db, 42, "octocat/hello-world")
	eventID := addTestEvent(t, db, "d-1", repoID)

	bug := makeIssue(repoID, eventID, 99, []string{"bug", "p1"})
	require.NoError(t, issueRepo.Upsert(ctx, bug))

	feature := makeIssue(repoID, eventID, 100, []string{"enhancement"})
	feature.Number = 14
	feature.State = model.IssueStateClosed
	feature.Author = "hubot"
	require.NoError(t, issueRepo.Upsert(ctx, feature))

	byLabel, err := issueRepo.List(ctx, driven.IssueFilter{Label: "bug"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, int64(99), byLabel[0].GitHubID)

	// "p" must not match "p1" by substring.
	noMatch, err := issueRepo.List(ctx, driven.IssueFilter{Label: "p"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, noMatch)

	byState, err := issueRepo.List(ctx, driven.IssueFilter{State: model.IssueStateClosed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, int64(100), byState[0].GitHubID)

	byAuthor, err := issueRepo.List(ctx, driven.IssueFilter{Author: "octocat"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, int64(99), byAuthor[0].GitHubID)
}
