package application

import (
	"context"
	"fmt"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// --- In-memory port implementations shared by the application tests ---

type mockRepoStore struct {
	byGitHubID map[int64]model.Repository
	nextID     int64
	upsertErr  error
}

func newMockRepoStore() *mockRepoStore {
	return &mockRepoStore{byGitHubID: make(map[int64]model.Repository)}
}

func (m *mockRepoStore) Upsert(_ context.Context, repo model.Repository) (int64, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	if existing, ok := m.byGitHubID[repo.GitHubID]; ok {
		repo.ID = existing.ID
		repo.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		repo.ID = m.nextID
		repo.CreatedAt = time.Now().UTC()
	}
	repo.UpdatedAt = time.Now().UTC()
	m.byGitHubID[repo.GitHubID] = repo
	return repo.ID, nil
}

func (m *mockRepoStore) GetByGitHubID(_ context.Context, githubID int64) (*model.Repository, error) {
	if repo, ok := m.byGitHubID[githubID]; ok {
		return &repo, nil
	}
	return nil, nil
}

func (m *mockRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	for _, repo := range m.byGitHubID {
		if repo.FullName == fullName {
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) List(_ context.Context, _, _ int) ([]model.Repository, error) {
	repos := make([]model.Repository, 0, len(m.byGitHubID))
	for _, repo := range m.byGitHubID {
		repos = append(repos, repo)
	}
	return repos, nil
}

type mockEventStore struct {
	byID       map[int64]model.WebhookEvent
	byDelivery map[string]int64
	nextID     int64
	insertErr  error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{
		byID:       make(map[int64]model.WebhookEvent),
		byDelivery: make(map[string]int64),
	}
}

func (m *mockEventStore) Insert(_ context.Context, event model.WebhookEvent) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	if _, ok := m.byDelivery[event.DeliveryID]; ok {
		return 0, fmt.Errorf("insert event %s: %w", event.DeliveryID, driven.ErrDuplicateDelivery)
	}
	m.nextID++
	event.ID = m.nextID
	m.byID[event.ID] = event
	m.byDelivery[event.DeliveryID] = event.ID
	return event.ID, nil
}

func (m *mockEventStore) GetByID(_ context.Context, id int64) (*model.WebhookEvent, error) {
	event, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get event %d: %w", id, driven.ErrEventNotFound)
	}
	return &event, nil
}

func (m *mockEventStore) MarkProcessed(_ context.Context, id int64) error {
	event, ok := m.byID[id]
	if !ok {
		return driven.ErrEventNotFound
	}
	now := time.Now().UTC()
	event.Processed = true
	event.ProcessedAt = &now
	event.LastError = ""
	m.byID[id] = event
	return nil
}

func (m *mockEventStore) RecordError(_ context.Context, id int64, msg string) error {
	event, ok := m.byID[id]
	if !ok {
		return driven.ErrEventNotFound
	}
	event.LastError = msg
	m.byID[id] = event
	return nil
}

func (m *mockEventStore) List(_ context.Context, filter driven.EventFilter, _, _ int) ([]model.WebhookEvent, error) {
	var events []model.WebhookEvent
	for _, event := range m.byID {
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		if filter.Processed != nil && event.Processed != *filter.Processed {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

type mockCommitStore struct {
	byKey       map[string]model.Commit
	upsertCalls int
	upsertErr   error
	// failSHA makes Upsert fail for one commit while the rest succeed.
	failSHA string
}

func newMockCommitStore() *mockCommitStore {
	return &mockCommitStore{byKey: make(map[string]model.Commit)}
}

func commitKey(repositoryID int64, sha string) string {
	return fmt.Sprintf("%d/%s", repositoryID, sha)
}

func (m *mockCommitStore) Upsert(_ context.Context, commit model.Commit) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.failSHA != "" && commit.SHA == m.failSHA {
		return fmt.Errorf("upsert commit %s: disk I/O error", commit.SHA)
	}
	m.upsertCalls++
	key := commitKey(commit.RepositoryID, commit.SHA)
	if existing, ok := m.byKey[key]; ok {
		commit.WebhookEventID = existing.WebhookEventID
	}
	m.byKey[key] = commit
	return nil
}

func (m *mockCommitStore) GetBySHA(_ context.Context, repositoryID int64, sha string) (*model.Commit, error) {
	if commit, ok := m.byKey[commitKey(repositoryID, sha)]; ok {
		return &commit, nil
	}
	return nil, nil
}

func (m *mockCommitStore) List(_ context.Context, filter driven.CommitFilter, _, _ int) ([]model.Commit, error) {
	var commits []model.Commit
	for _, commit := range m.byKey {
		if filter.RepositoryID != 0 && commit.RepositoryID != filter.RepositoryID {
			continue
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

type mockPRStore struct {
	byGitHubID  map[int64]model.PullRequest
	upsertCalls int
	upsertErr   error
}

func newMockPRStore() *mockPRStore {
	return &mockPRStore{byGitHubID: make(map[int64]model.PullRequest)}
}

func (m *mockPRStore) Upsert(_ context.Context, pr model.PullRequest) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertCalls++
	m.byGitHubID[pr.GitHubID] = pr
	return nil
}

func (m *mockPRStore) GetByGitHubID(_ context.Context, githubID int64) (*model.PullRequest, error) {
	if pr, ok := m.byGitHubID[githubID]; ok {
		return &pr, nil
	}
	return nil, nil
}

func (m *mockPRStore) List(_ context.Context, _ driven.PullRequestFilter, _, _ int) ([]model.PullRequest, error) {
	var prs []model.PullRequest
	for _, pr := range m.byGitHubID {
		prs = append(prs, pr)
	}
	return prs, nil
}

type mockIssueStore struct {
	byGitHubID  map[int64]model.Issue
	upsertCalls int
	upsertErr   error
}

func newMockIssueStore() *mockIssueStore {
	return &mockIssueStore{byGitHubID: make(map[int64]model.Issue)}
}

func (m *mockIssueStore) Upsert(_ context.Context, issue model.Issue) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertCalls++
	m.byGitHubID[issue.GitHubID] = issue
	return nil
}

func (m *mockIssueStore) GetByGitHubID(_ context.Context, githubID int64) (*model.Issue, error) {
	if issue, ok := m.byGitHubID[githubID]; ok {
		return &issue, nil
	}
	return nil, nil
}

func (m *mockIssueStore) List(_ context.Context, _ driven.IssueFilter, _, _ int) ([]model.Issue, error) {
	var issues []model.Issue
	for _, issue := range m.byGitHubID {
		issues = append(issues, issue)
	}
	return issues, nil
}

type mockGitHubClient struct {
	repo       model.Repository
	commits    []model.Commit
	repoErr    error
	commitsErr error
}

func (m *mockGitHubClient) FetchRepository(_ context.Context, _, _ string) (model.Repository, error) {
	if m.repoErr != nil {
		return model.Repository{}, m.repoErr
	}
	return m.repo, nil
}

func (m *mockGitHubClient) FetchRecentCommits(_ context.Context, _, _ string, limit int) ([]model.Commit, error) {
	if m.commitsErr != nil {
		return nil, m.commitsErr
	}
	if limit < len(m.commits) {
		return m.commits[:limit], nil
	}
	return m.commits, nil
}
