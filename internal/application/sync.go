package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// ErrSyncUnavailable indicates no GitHub API client is configured, so
// on-demand backfill cannot run.
var ErrSyncUnavailable = errors.New("github sync is not configured")

// SyncService backfills repository state from the GitHub REST API, covering
// gaps from deliveries that never arrived. Fetched data flows through the
// same idempotent upsert paths the webhook pipeline uses, attributed to a
// synthetic sync event so every normalized row still traces to a stored
// event.
type SyncService struct {
	ghClient    driven.GitHubClient
	repoStore   driven.RepositoryStore
	eventStore  driven.EventStore
	commitStore driven.CommitStore
	commitLimit int
}

// NewSyncService creates a SyncService. ghClient may be nil when no API
// token is configured; SyncRepository then returns ErrSyncUnavailable.
func NewSyncService(
	ghClient driven.GitHubClient,
	repoStore driven.RepositoryStore,
	eventStore driven.EventStore,
	commitStore driven.CommitStore,
	commitLimit int,
) *SyncService {
	return &SyncService{
		ghClient:    ghClient,
		repoStore:   repoStore,
		eventStore:  eventStore,
		commitStore: commitStore,
		commitLimit: commitLimit,
	}
}

// SyncResult reports what a sync run touched.
type SyncResult struct {
	RepositoryID int64
	Commits      int
}

// SyncRepository fetches current repository metadata and recent
// default-branch commits and persists them. Commits already known from
// webhook deliveries are updated in place; the run never deletes anything.
func (s *SyncService) SyncRepository(ctx context.Context, owner, name string) (SyncResult, error) {
	if s.ghClient == nil {
		return SyncResult{}, ErrSyncUnavailable
	}

	fullName := owner + "/" + name
	start := time.Now()

	repo, err := s.ghClient.FetchRepository(ctx, owner, name)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch repository %s: %w", fullName, err)
	}

	repoID, err := s.repoStore.Upsert(ctx, repo)
	if err != nil {
		return SyncResult{}, fmt.Errorf("upsert repository %s: %w", fullName, err)
	}

	eventID, err := s.recordSyncEvent(ctx, repoID, fullName)
	if err != nil {
		return SyncResult{}, err
	}

	commits, err := s.ghClient.FetchRecentCommits(ctx, owner, name, s.commitLimit)
	if err != nil {
		if recordErr := s.eventStore.RecordError(ctx, eventID, err.Error()); recordErr != nil {
			slog.Error("record sync error failed", "event_id", eventID, "error", recordErr)
		}
		return SyncResult{RepositoryID: repoID}, fmt.Errorf("fetch commits for %s: %w", fullName, err)
	}

	var applied, failed int
	for _, commit := range commits {
		commit.RepositoryID = repoID
		commit.WebhookEventID = eventID
		if err := s.commitStore.Upsert(ctx, commit); err != nil {
			slog.Error("sync commit upsert failed", "repo", fullName, "sha", commit.SHA, "error", err)
			failed++
			continue
		}
		applied++
	}

	// Skipped upserts leave the sync event unprocessed and annotated, so the
	// gap stays visible to the reprocessing surface like any extraction failure.
	if failed > 0 {
		msg := fmt.Sprintf("%d of %d commit upserts failed", failed, len(commits))
		if recordErr := s.eventStore.RecordError(ctx, eventID, msg); recordErr != nil {
			slog.Error("record sync error failed", "event_id", eventID, "error", recordErr)
		}
	} else if err := s.eventStore.MarkProcessed(ctx, eventID); err != nil {
		slog.Error("mark sync event processed failed", "event_id", eventID, "error", err)
	}

	slog.Info("repository synced",
		"repo", fullName,
		"commits", applied,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return SyncResult{RepositoryID: repoID, Commits: applied}, nil
}

// recordSyncEvent stores a synthetic event row that backfilled entities
// reference as their provenance. The delivery ID is unique per run.
func (s *SyncService) recordSyncEvent(ctx context.Context, repoID int64, fullName string) (int64, error) {
	payload, err := json.Marshal(map[string]string{
		"source":     "api_sync",
		"repository": fullName,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal sync payload: %w", err)
	}

	event := model.WebhookEvent{
		RepositoryID: &repoID,
		EventType:    "api_sync",
		DeliveryID:   fmt.Sprintf("api-sync-%s-%d", fullName, time.Now().UnixNano()),
		Payload:      payload,
		ReceivedAt:   time.Now().UTC(),
	}

	eventID, err := s.eventStore.Insert(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("record sync event for %s: %w", fullName, err)
	}

	return eventID, nil
}
