package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// ErrInvalidPayload indicates a recognized event type whose payload is
// missing fields required for extraction. The raw event is already stored,
// so the failure is recorded against it and the delivery is still
// acknowledged to the sender.
var ErrInvalidPayload = errors.New("invalid event payload")

// Extractor turns stored webhook payloads into normalized entities. Event
// types without a registered extraction are a no-op success: the raw event
// remains available for a future version that understands them.
type Extractor struct {
	commitStore driven.CommitStore
	prStore     driven.PullRequestStore
	issueStore  driven.IssueStore
}

// NewExtractor creates an Extractor with all required dependencies.
func NewExtractor(
	commitStore driven.CommitStore,
	prStore driven.PullRequestStore,
	issueStore driven.IssueStore,
) *Extractor {
	return &Extractor{
		commitStore: commitStore,
		prStore:     prStore,
		issueStore:  issueStore,
	}
}

// Extract dispatches on the event type and upserts the entities the payload
// describes. The event must already be persisted: extracted rows reference
// its ID for provenance. Every upsert is idempotent, so re-running Extract
// after a partial failure is safe.
func (e *Extractor) Extract(ctx context.Context, event model.WebhookEvent) error {
	switch event.EventType {
	case model.EventTypePush, model.EventTypePullRequest, model.EventTypeIssues:
	default:
		return nil
	}

	if event.RepositoryID == nil {
		return fmt.Errorf("%w: %s event without repository", ErrInvalidPayload, event.EventType)
	}

	payload, err := gh.ParseWebHook(event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("%w: parse %s payload: %v", ErrInvalidPayload, event.EventType, err)
	}

	switch p := payload.(type) {
	case *gh.PushEvent:
		return e.extractPush(ctx, event, p)
	case *gh.PullRequestEvent:
		return e.extractPullRequest(ctx, event, p)
	case *gh.IssuesEvent:
		return e.extractIssues(ctx, event, p)
	default:
		return nil
	}
}

// extractPush upserts one commit per entry in the push's commit list. A push
// with an empty commit list (branch creation, deletion, tags) is a no-op
// success.
func (e *Extractor) extractPush(ctx context.Context, event model.WebhookEvent, push *gh.PushEvent) error {
	for i, hc := range push.Commits {
		sha := hc.GetID()
		if sha == "" {
			return fmt.Errorf("%w: commit %d has no sha", ErrInvalidPayload, i)
		}

		committedAt := hc.GetTimestamp().Time
		if committedAt.IsZero() {
			committedAt = event.ReceivedAt
		}

		commit := model.Commit{
			RepositoryID:   *event.RepositoryID,
			WebhookEventID: event.ID,
			SHA:            sha,
			Message:        hc.GetMessage(),
			AuthorName:     hc.GetAuthor().GetName(),
			AuthorEmail:    hc.GetAuthor().GetEmail(),
			CommitterName:  hc.GetCommitter().GetName(),
			CommitterEmail: hc.GetCommitter().GetEmail(),
			CommittedAt:    committedAt,
			URL:            hc.GetURL(),
		}

		if err := e.commitStore.Upsert(ctx, commit); err != nil {
			return fmt.Errorf("upsert commit %s: %w", sha, err)
		}
	}

	return nil
}

// extractPullRequest upserts the single pull request the event describes.
func (e *Extractor) extractPullRequest(ctx context.Context, event model.WebhookEvent, pre *gh.PullRequestEvent) error {
	pr := pre.GetPullRequest()
	if pr == nil || pr.GetID() == 0 || pr.GetNumber() == 0 {
		return fmt.Errorf("%w: pull_request event missing pull request id or number", ErrInvalidPayload)
	}

	// The payload's merged_at is authoritative for the merged state; the
	// "merged" flag alone also counts so a merged close is never mistaken
	// for a plain close.
	state := model.PRStateOpen
	switch {
	case !pr.GetMergedAt().Time.IsZero() || pr.GetMerged():
		state = model.PRStateMerged
	case pr.GetState() == "closed":
		state = model.PRStateClosed
	}

	openedAt := pr.GetCreatedAt().Time
	if openedAt.IsZero() {
		openedAt = event.ReceivedAt
	}

	normalized := model.PullRequest{
		RepositoryID:   *event.RepositoryID,
		WebhookEventID: event.ID,
		GitHubID:       pr.GetID(),
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		State:          state,
		Author:         pr.GetUser().GetLogin(),
		BaseBranch:     pr.GetBase().GetRef(),
		HeadBranch:     pr.GetHead().GetRef(),
		URL:            pr.GetHTMLURL(),
		OpenedAt:       openedAt,
		ClosedAt:       timestampPtr(pr.GetClosedAt()),
		MergedAt:       timestampPtr(pr.GetMergedAt()),
	}

	if err := e.prStore.Upsert(ctx, normalized); err != nil {
		return fmt.Errorf("upsert pull request #%d: %w", normalized.Number, err)
	}

	return nil
}

// extractIssues upserts the single issue the event describes. The label set
// in the payload replaces whatever was stored before.
func (e *Extractor) extractIssues(ctx context.Context, event model.WebhookEvent, ie *gh.IssuesEvent) error {
	issue := ie.GetIssue()
	if issue == nil || issue.GetID() == 0 || issue.GetNumber() == 0 {
		return fmt.Errorf("%w: issues event missing issue id or number", ErrInvalidPayload)
	}

	state := model.IssueStateOpen
	if issue.GetState() == "closed" {
		state = model.IssueStateClosed
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	openedAt := issue.GetCreatedAt().Time
	if openedAt.IsZero() {
		openedAt = event.ReceivedAt
	}

	normalized := model.Issue{
		RepositoryID:   *event.RepositoryID,
		WebhookEventID: event.ID,
		GitHubID:       issue.GetID(),
		Number:         issue.GetNumber(),
		Title:          issue.GetTitle(),
		State:          state,
		Author:         issue.GetUser().GetLogin(),
		Labels:         labels,
		URL:            issue.GetHTMLURL(),
		OpenedAt:       openedAt,
		ClosedAt:       timestampPtr(issue.GetClosedAt()),
	}

	if err := e.issueStore.Upsert(ctx, normalized); err != nil {
		return fmt.Errorf("upsert issue #%d: %w", normalized.Number, err)
	}

	return nil
}

// timestampPtr converts a go-github Timestamp to *time.Time, mapping the
// zero value to nil.
func timestampPtr(ts gh.Timestamp) *time.Time {
	if ts.Time.IsZero() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
