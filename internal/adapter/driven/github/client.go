// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/crossbowhq/crossbow/internal/domain/model"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchRepository retrieves current repository metadata.
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return model.Repository{}, fmt.Errorf("fetching repository %s/%s: %w", owner, name, err)
	}

	logRateLimit(resp, owner+"/"+name, 1)

	return model.Repository{
		GitHubID:    repo.GetID(),
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Owner:       repo.GetOwner().GetLogin(),
		Description: repo.GetDescription(),
		URL:         repo.GetHTMLURL(),
		IsPrivate:   repo.GetPrivate(),
	}, nil
}

// FetchRecentCommits retrieves up to limit recent default-branch commits,
// newest first. RepositoryID and WebhookEventID are left unset; the caller
// fills them in before persisting.
func (c *Client) FetchRecentCommits(ctx context.Context, owner, name string, limit int) ([]model.Commit, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var commits []model.Commit

	for {
		page, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing commits for %s/%s (page %d): %w", owner, name, opts.Page, err)
		}

		logRateLimit(resp, owner+"/"+name+"/commits", len(page))

		for _, rc := range page {
			commits = append(commits, mapCommit(rc))
			if len(commits) == limit {
				return commits, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return commits, nil
}

// mapCommit converts a go-github RepositoryCommit to a domain model Commit.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit) model.Commit {
	commit := rc.GetCommit()

	return model.Commit{
		SHA:            rc.GetSHA(),
		Message:        commit.GetMessage(),
		AuthorName:     commit.GetAuthor().GetName(),
		AuthorEmail:    commit.GetAuthor().GetEmail(),
		CommitterName:  commit.GetCommitter().GetName(),
		CommitterEmail: commit.GetCommitter().GetEmail(),
		CommittedAt:    commit.GetCommitter().GetDate().Time,
		URL:            rc.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)
}
