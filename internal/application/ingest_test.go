package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

const envelopePushPayload = `{
	"ref": "refs/heads/main",
	"repository": {
		"id": 42,
		"name": "hello-world",
		"full_name": "octocat/hello-world",
		"description": "My first repo",
		"html_url": "https://github.com/octocat/hello-world",
		"private": false,
		"owner": {"login": "octocat"}
	},
	"commits": [
		{
			"id": "abc123",
			"message": "fix parser",
			"timestamp": "2026-03-01T08:30:00Z",
			"url": "https://github.com/octocat/hello-world/commit/abc123",
			"author": {"name": "Mona Lisa", "email": "mona@example.com"},
			"committer": {"name": "Mona Lisa", "email": "mona@example.com"}
		}
	]
}`

type ingestFixture struct {
	svc         *IngestService
	repoStore   *mockRepoStore
	eventStore  *mockEventStore
	commitStore *mockCommitStore
	prStore     *mockPRStore
	issueStore  *mockIssueStore
}

func newIngestFixture() ingestFixture {
	repoStore := newMockRepoStore()
	eventStore := newMockEventStore()
	commitStore := newMockCommitStore()
	prStore := newMockPRStore()
	issueStore := newMockIssueStore()
	extractor := NewExtractor(commitStore, prStore, issueStore)

	return ingestFixture{
		svc:         NewIngestService(repoStore, eventStore, extractor),
		repoStore:   repoStore,
		eventStore:  eventStore,
		commitStore: commitStore,
		prStore:     prStore,
		issueStore:  issueStore,
	}
}

func TestIngestService_Ingest_FreshPush(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, "push", "d-1", "sha256=sig", []byte(envelopePushPayload))
	require.NoError(t, err)

	assert.False(t, result.Duplicate)
	assert.True(t, result.Processed)
	assert.Empty(t, result.ExtractionError)
	require.NotZero(t, result.EventID)

	repo, err := f.repoStore.GetByGitHubID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "octocat/hello-world", repo.FullName)
	assert.Equal(t, "octocat", repo.Owner)

	event, err := f.eventStore.GetByID(ctx, result.EventID)
	require.NoError(t, err)
	assert.True(t, event.Processed)
	require.NotNil(t, event.RepositoryID)
	assert.Equal(t, repo.ID, *event.RepositoryID)
	assert.JSONEq(t, envelopePushPayload, string(event.Payload))

	commit, err := f.commitStore.GetBySHA(ctx, repo.ID, "abc123")
	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, result.EventID, commit.WebhookEventID)
}

func TestIngestService_Ingest_DuplicateDelivery(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, "push", "d-1", "sha256=sig", []byte(envelopePushPayload))
	require.NoError(t, err)
	require.True(t, first.Processed)

	callsAfterFirst := f.commitStore.upsertCalls

	second, err := f.svc.Ingest(ctx, "push", "d-1", "sha256=sig", []byte(envelopePushPayload))
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.False(t, second.Processed)
	assert.Equal(t, callsAfterFirst, f.commitStore.upsertCalls, "duplicate must not re-run extraction")
	assert.Len(t, f.eventStore.byID, 1)
}

func TestIngestService_Ingest_MalformedEnvelope(t *testing.T) {
	f := newIngestFixture()

	_, err := f.svc.Ingest(context.Background(), "push", "d-1", "sha256=sig", []byte("not json"))

	require.ErrorIs(t, err, ErrMalformedEnvelope)
	assert.Empty(t, f.eventStore.byID, "nothing is persisted for an undecodable body")
}

func TestIngestService_Ingest_ExtractionFailureStillAcknowledged(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	// Valid envelope, but the pull_request object is missing entirely.
	payload := `{
		"action": "opened",
		"repository": {
			"id": 42,
			"name": "hello-world",
			"full_name": "octocat/hello-world",
			"owner": {"login": "octocat"}
		}
	}`

	result, err := f.svc.Ingest(ctx, "pull_request", "d-1", "sha256=sig", []byte(payload))
	require.NoError(t, err, "extraction failure must not surface to the sender")

	assert.False(t, result.Processed)
	assert.NotEmpty(t, result.ExtractionError)

	event, err := f.eventStore.GetByID(ctx, result.EventID)
	require.NoError(t, err)
	assert.False(t, event.Processed)
	assert.NotEmpty(t, event.LastError)
	assert.Zero(t, f.prStore.upsertCalls)
}

func TestIngestService_Ingest_UnrecognizedType(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	payload := `{
		"action": "started",
		"repository": {
			"id": 42,
			"name": "hello-world",
			"full_name": "octocat/hello-world",
			"owner": {"login": "octocat"}
		}
	}`

	result, err := f.svc.Ingest(ctx, "watch", "d-1", "sha256=sig", []byte(payload))
	require.NoError(t, err)

	assert.True(t, result.Processed, "unrecognized types are stored and marked processed")
	assert.Zero(t, f.commitStore.upsertCalls)
	assert.Zero(t, f.prStore.upsertCalls)
	assert.Zero(t, f.issueStore.upsertCalls)

	repo, err := f.repoStore.GetByGitHubID(ctx, 42)
	require.NoError(t, err)
	assert.NotNil(t, repo, "repository from the envelope is registered even without extraction")
}

func TestIngestService_Ingest_NoRepositoryEnvelope(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, "ping", "d-1", "sha256=sig", []byte(`{"zen": "Design for failure."}`))
	require.NoError(t, err)

	event, err := f.eventStore.GetByID(ctx, result.EventID)
	require.NoError(t, err)
	assert.Nil(t, event.RepositoryID)
	assert.Empty(t, f.repoStore.byGitHubID)
}

func TestIngestService_Reprocess(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	payload := `{
		"action": "opened",
		"repository": {
			"id": 42,
			"name": "hello-world",
			"full_name": "octocat/hello-world",
			"owner": {"login": "octocat"}
		}
	}`

	result, err := f.svc.Ingest(ctx, "pull_request", "d-1", "sha256=sig", []byte(payload))
	require.NoError(t, err)
	require.NotEmpty(t, result.ExtractionError)

	// The payload has not changed, so reprocessing fails the same way but
	// stays safe.
	event, err := f.svc.Reprocess(ctx, result.EventID)
	require.NoError(t, err)

	assert.False(t, event.Processed)
	assert.NotEmpty(t, event.LastError)
}

func TestIngestService_Reprocess_Success(t *testing.T) {
	f := newIngestFixture()
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, "push", "d-1", "sha256=sig", []byte(envelopePushPayload))
	require.NoError(t, err)

	callsAfterIngest := f.commitStore.upsertCalls

	event, err := f.svc.Reprocess(ctx, result.EventID)
	require.NoError(t, err)

	assert.True(t, event.Processed)
	assert.Equal(t, callsAfterIngest+1, f.commitStore.upsertCalls, "reprocess re-runs the idempotent upserts")
}

func TestIngestService_Reprocess_NotFound(t *testing.T) {
	f := newIngestFixture()

	_, err := f.svc.Reprocess(context.Background(), 999)
	require.ErrorIs(t, err, driven.ErrEventNotFound)
}
