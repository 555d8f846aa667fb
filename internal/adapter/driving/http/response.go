package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/crossbowhq/crossbow/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writePage writes a paginated list response.
func writePage(w http.ResponseWriter, page, perPage int, hasNext bool, items any) {
	writeJSON(w, http.StatusOK, pageResponse{
		Page:    page,
		PerPage: perPage,
		HasNext: hasNext,
		Items:   items,
	})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// pageResponse wraps a list endpoint's items with pagination metadata.
// HasNext is derived from fetching one row beyond the requested page size.
type pageResponse struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
	Items   any  `json:"items"`
}

// webhookAckResponse acknowledges a webhook delivery. Fresh and duplicate
// deliveries get the same body.
type webhookAckResponse struct {
	Status string `json:"status"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	ID          int64  `json:"id"`
	GitHubID    int64  `json:"github_id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Owner       string `json:"owner"`
	Description string `json:"description"`
	URL         string `json:"url"`
	IsPrivate   bool   `json:"is_private"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// EventResponse is the JSON representation of a stored webhook event. The
// raw payload is not echoed back on list endpoints; it stays queryable in
// the database.
type EventResponse struct {
	ID           int64   `json:"id"`
	RepositoryID *int64  `json:"repository_id"`
	EventType    string  `json:"event_type"`
	EventAction  string  `json:"event_action,omitempty"`
	DeliveryID   string  `json:"delivery_id"`
	ReceivedAt   string  `json:"received_at"`
	Processed    bool    `json:"processed"`
	ProcessedAt  *string `json:"processed_at"`
	LastError    string  `json:"last_error,omitempty"`
}

// CommitResponse is the JSON representation of a normalized commit.
type CommitResponse struct {
	ID             int64  `json:"id"`
	RepositoryID   int64  `json:"repository_id"`
	SHA            string `json:"sha"`
	Message        string `json:"message"`
	AuthorName     string `json:"author_name"`
	AuthorEmail    string `json:"author_email"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`
	CommittedAt    string `json:"committed_at"`
	URL            string `json:"url"`
}

// PRResponse is the JSON representation of a normalized pull request.
type PRResponse struct {
	ID           int64   `json:"id"`
	RepositoryID int64   `json:"repository_id"`
	GitHubID     int64   `json:"github_id"`
	Number       int     `json:"number"`
	Title        string  `json:"title"`
	State        string  `json:"state"`
	Author       string  `json:"author"`
	BaseBranch   string  `json:"base_branch"`
	HeadBranch   string  `json:"head_branch"`
	URL          string  `json:"url"`
	OpenedAt     string  `json:"opened_at"`
	ClosedAt     *string `json:"closed_at"`
	MergedAt     *string `json:"merged_at"`
}

// IssueResponse is the JSON representation of a normalized issue.
type IssueResponse struct {
	ID           int64    `json:"id"`
	RepositoryID int64    `json:"repository_id"`
	GitHubID     int64    `json:"github_id"`
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	State        string   `json:"state"`
	Author       string   `json:"author"`
	Labels       []string `json:"labels"`
	URL          string   `json:"url"`
	OpenedAt     string   `json:"opened_at"`
	ClosedAt     *string  `json:"closed_at"`
}

// SyncResponse is the JSON representation of a completed sync run.
type SyncResponse struct {
	RepositoryID int64 `json:"repository_id"`
	Commits      int   `json:"commits"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		ID:          repo.ID,
		GitHubID:    repo.GitHubID,
		Name:        repo.Name,
		FullName:    repo.FullName,
		Owner:       repo.Owner,
		Description: repo.Description,
		URL:         repo.URL,
		IsPrivate:   repo.IsPrivate,
		CreatedAt:   repo.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   repo.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toEventResponse(event model.WebhookEvent) EventResponse {
	return EventResponse{
		ID:           event.ID,
		RepositoryID: event.RepositoryID,
		EventType:    event.EventType,
		EventAction:  event.EventAction,
		DeliveryID:   event.DeliveryID,
		ReceivedAt:   event.ReceivedAt.UTC().Format(time.RFC3339),
		Processed:    event.Processed,
		ProcessedAt:  formatTimePtr(event.ProcessedAt),
		LastError:    event.LastError,
	}
}

func toCommitResponse(commit model.Commit) CommitResponse {
	return CommitResponse{
		ID:             commit.ID,
		RepositoryID:   commit.RepositoryID,
		SHA:            commit.SHA,
		Message:        commit.Message,
		AuthorName:     commit.AuthorName,
		AuthorEmail:    commit.AuthorEmail,
		CommitterName:  commit.CommitterName,
		CommitterEmail: commit.CommitterEmail,
		CommittedAt:    commit.CommittedAt.UTC().Format(time.RFC3339),
		URL:            commit.URL,
	}
}

func toPRResponse(pr model.PullRequest) PRResponse {
	return PRResponse{
		ID:           pr.ID,
		RepositoryID: pr.RepositoryID,
		GitHubID:     pr.GitHubID,
		Number:       pr.Number,
		Title:        pr.Title,
		State:        string(pr.State),
		Author:       pr.Author,
		BaseBranch:   pr.BaseBranch,
		HeadBranch:   pr.HeadBranch,
		URL:          pr.URL,
		OpenedAt:     pr.OpenedAt.UTC().Format(time.RFC3339),
		ClosedAt:     formatTimePtr(pr.ClosedAt),
		MergedAt:     formatTimePtr(pr.MergedAt),
	}
}

func toIssueResponse(issue model.Issue) IssueResponse {
	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}

	return IssueResponse{
		ID:           issue.ID,
		RepositoryID: issue.RepositoryID,
		GitHubID:     issue.GitHubID,
		Number:       issue.Number,
		Title:        issue.Title,
		State:        string(issue.State),
		Author:       issue.Author,
		Labels:       labels,
		URL:          issue.URL,
		OpenedAt:     issue.OpenedAt.UTC().Format(time.RFC3339),
		ClosedAt:     formatTimePtr(issue.ClosedAt),
	}
}

// formatTimePtr formats an optional timestamp as RFC3339, preserving nil.
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
