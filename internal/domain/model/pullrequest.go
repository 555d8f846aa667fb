package model

import "time"

// PullRequest is the normalized view of a GitHub pull request, keyed by the
// host-global GitHubID. Events referencing the same GitHubID mutate the row
// in place rather than creating new rows.
type PullRequest struct {
	ID             int64
	RepositoryID   int64
	WebhookEventID int64
	GitHubID       int64
	Number         int
	Title          string
	State          PRState
	Author         string
	BaseBranch     string
	HeadBranch     string
	URL            string
	OpenedAt       time.Time
	ClosedAt       *time.Time
	MergedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
