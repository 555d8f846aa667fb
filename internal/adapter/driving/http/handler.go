// Package httphandler is the HTTP driving adapter: the webhook ingestion
// endpoint and the read-only REST API over the normalized data.
package httphandler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crossbowhq/crossbow/internal/application"
	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// maxWebhookBody caps webhook request bodies. GitHub caps payloads at 25 MB.
const maxWebhookBody = 25 << 20

const defaultPerPage = 30

// Handler is the HTTP driving adapter that serves the webhook endpoint and
// the REST API.
type Handler struct {
	repoStore     driven.RepositoryStore
	eventStore    driven.EventStore
	commitStore   driven.CommitStore
	prStore       driven.PullRequestStore
	issueStore    driven.IssueStore
	ingestSvc     *application.IngestService
	syncSvc       *application.SyncService
	webhookSecret string
	maxPageSize   int
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	repoStore driven.RepositoryStore,
	eventStore driven.EventStore,
	commitStore driven.CommitStore,
	prStore driven.PullRequestStore,
	issueStore driven.IssueStore,
	ingestSvc *application.IngestService,
	syncSvc *application.SyncService,
	webhookSecret string,
	maxPageSize int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		repoStore:     repoStore,
		eventStore:    eventStore,
		commitStore:   commitStore,
		prStore:       prStore,
		issueStore:    issueStore,
		ingestSvc:     ingestSvc,
		syncSvc:       syncSvc,
		webhookSecret: webhookSecret,
		maxPageSize:   maxPageSize,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/github", h.ReceiveWebhook)
	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/commits", h.ListCommits)
	mux.HandleFunc("GET /api/v1/pulls", h.ListPulls)
	mux.HandleFunc("GET /api/v1/issues", h.ListIssues)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("POST /api/v1/events/{id}/reprocess", h.ReprocessEvent)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/sync", h.SyncRepo)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ReceiveWebhook accepts a GitHub webhook delivery. Signature verification
// runs before anything is read from the headers or written to storage; an
// unverifiable delivery is rejected with 401 and leaves no trace. Duplicate
// deliveries and extraction failures are both acknowledged with 200, so a
// non-200 from this endpoint always means the delivery should be resent.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(h.webhookSecret, body, signature) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if eventType == "" || deliveryID == "" {
		writeError(w, http.StatusBadRequest, "missing event type or delivery id header")
		return
	}

	result, err := h.ingestSvc.Ingest(r.Context(), eventType, deliveryID, signature, body)
	if errors.Is(err, application.ErrMalformedEnvelope) {
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}
	if err != nil {
		h.logger.Error("webhook ingestion failed", "delivery_id", deliveryID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !result.Duplicate {
		h.logger.Info("webhook ingested",
			"delivery_id", deliveryID,
			"event_type", eventType,
			"event_id", result.EventID,
			"processed", result.Processed,
		)
	}

	writeJSON(w, http.StatusOK, webhookAckResponse{Status: "received"})
}

// ListRepos returns tracked repositories, most recently updated first.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := h.pagination(w, r)
	if !ok {
		return
	}

	repos, err := h.repoStore.List(r.Context(), perPage+1, (page-1)*perPage)
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasNext := len(repos) > perPage
	if hasNext {
		repos = repos[:perPage]
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writePage(w, page, perPage, hasNext, resp)
}

// ListCommits returns normalized commits filtered by repository, author
// email, and commit time range.
func (h *Handler) ListCommits(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := h.pagination(w, r)
	if !ok {
		return
	}

	filter := driven.CommitFilter{AuthorEmail: r.URL.Query().Get("author")}

	repoID, found, ok := h.repositoryFilter(w, r)
	if !ok {
		return
	}
	if !found {
		writePage(w, page, perPage, false, []CommitResponse{})
		return
	}
	filter.RepositoryID = repoID

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp: expected RFC 3339")
			return
		}
		filter.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until timestamp: expected RFC 3339")
			return
		}
		filter.Until = t
	}

	commits, err := h.commitStore.List(r.Context(), filter, perPage+1, (page-1)*perPage)
	if err != nil {
		h.logger.Error("failed to list commits", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasNext := len(commits) > perPage
	if hasNext {
		commits = commits[:perPage]
	}

	resp := make([]CommitResponse, 0, len(commits))
	for _, commit := range commits {
		resp = append(resp, toCommitResponse(commit))
	}

	writePage(w, page, perPage, hasNext, resp)
}

// ListPulls returns normalized pull requests filtered by repository, state,
// and author.
func (h *Handler) ListPulls(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := h.pagination(w, r)
	if !ok {
		return
	}

	filter := driven.PullRequestFilter{Author: r.URL.Query().Get("author")}

	switch state := r.URL.Query().Get("state"); state {
	case "":
	case "open", "closed", "merged":
		filter.State = model.PRState(state)
	default:
		writeError(w, http.StatusBadRequest, "invalid state: expected open, closed, or merged")
		return
	}

	repoID, found, ok := h.repositoryFilter(w, r)
	if !ok {
		return
	}
	if !found {
		writePage(w, page, perPage, false, []PRResponse{})
		return
	}
	filter.RepositoryID = repoID

	prs, err := h.prStore.List(r.Context(), filter, perPage+1, (page-1)*perPage)
	if err != nil {
		h.logger.Error("failed to list pull requests", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasNext := len(prs) > perPage
	if hasNext {
		prs = prs[:perPage]
	}

	resp := make([]PRResponse, 0, len(prs))
	for _, pr := range prs {
		resp = append(resp, toPRResponse(pr))
	}

	writePage(w, page, perPage, hasNext, resp)
}

// ListIssues returns normalized issues filtered by repository, state,
// author, and label.
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := h.pagination(w, r)
	if !ok {
		return
	}

	filter := driven.IssueFilter{
		Author: r.URL.Query().Get("author"),
		Label:  r.URL.Query().Get("label"),
	}

	switch state := r.URL.Query().Get("state"); state {
	case "":
	case "open", "closed":
		filter.State = model.IssueState(state)
	default:
		writeError(w, http.StatusBadRequest, "invalid state: expected open or closed")
		return
	}

	repoID, found, ok := h.repositoryFilter(w, r)
	if !ok {
		return
	}
	if !found {
		writePage(w, page, perPage, false, []IssueResponse{})
		return
	}
	filter.RepositoryID = repoID

	issues, err := h.issueStore.List(r.Context(), filter, perPage+1, (page-1)*perPage)
	if err != nil {
		h.logger.Error("failed to list issues", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasNext := len(issues) > perPage
	if hasNext {
		issues = issues[:perPage]
	}

	resp := make([]IssueResponse, 0, len(issues))
	for _, issue := range issues {
		resp = append(resp, toIssueResponse(issue))
	}

	writePage(w, page, perPage, hasNext, resp)
}

// ListEvents returns stored webhook events filtered by repository, event
// type, and processed state.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := h.pagination(w, r)
	if !ok {
		return
	}

	filter := driven.EventFilter{EventType: r.URL.Query().Get("event_type")}

	switch processed := r.URL.Query().Get("processed"); processed {
	case "":
	case "true", "false":
		v := processed == "true"
		filter.Processed = &v
	default:
		writeError(w, http.StatusBadRequest, "invalid processed flag: expected true or false")
		return
	}

	repoID, found, ok := h.repositoryFilter(w, r)
	if !ok {
		return
	}
	if !found {
		writePage(w, page, perPage, false, []EventResponse{})
		return
	}
	filter.RepositoryID = repoID

	events, err := h.eventStore.List(r.Context(), filter, perPage+1, (page-1)*perPage)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasNext := len(events) > perPage
	if hasNext {
		events = events[:perPage]
	}

	resp := make([]EventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, toEventResponse(event))
	}

	writePage(w, page, perPage, hasNext, resp)
}

// ReprocessEvent re-runs extraction for a stored event.
func (h *Handler) ReprocessEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.ingestSvc.Reprocess(r.Context(), id)
	if errors.Is(err, driven.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to reprocess event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(*event))
}

// SyncRepo backfills one repository from the GitHub REST API.
func (h *Handler) SyncRepo(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	repo := r.PathValue("repo")
	if !isValidRepoName(owner + "/" + repo) {
		writeError(w, http.StatusBadRequest, "invalid repository name")
		return
	}

	result, err := h.syncSvc.SyncRepository(r.Context(), owner, repo)
	if errors.Is(err, application.ErrSyncUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "github sync is not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed to sync repository", "repo", owner+"/"+repo, "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch from github")
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		RepositoryID: result.RepositoryID,
		Commits:      result.Commits,
	})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// pagination parses page and per_page query parameters. per_page is clamped
// to [1, maxPageSize] rather than rejected, so an oversized request degrades
// to the configured limit. Returns ok=false after writing an error response.
func (h *Handler) pagination(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	page = 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return 0, 0, false
		}
		page = v
	}

	perPage = defaultPerPage
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid per_page")
			return 0, 0, false
		}
		perPage = v
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > h.maxPageSize {
		perPage = h.maxPageSize
	}

	return page, perPage, true
}

// repositoryFilter resolves the optional repository=owner/name query
// parameter to a local row ID. found=false means the filter named a
// repository this service has never seen, so the result set is empty by
// definition. ok=false means an error response was already written.
func (h *Handler) repositoryFilter(w http.ResponseWriter, r *http.Request) (repoID int64, found, ok bool) {
	fullName := r.URL.Query().Get("repository")
	if fullName == "" {
		return 0, true, true
	}

	if !isValidRepoName(fullName) {
		writeError(w, http.StatusBadRequest, "invalid repository filter: expected owner/repo format")
		return 0, false, false
	}

	repo, err := h.repoStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to resolve repository filter", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return 0, false, false
	}
	if repo == nil {
		return 0, false, true
	}

	return repo.ID, true, true
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
