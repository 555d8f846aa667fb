package model

import "time"

// Issue is the normalized view of a GitHub issue, keyed by the host-global
// GitHubID. Labels reflect the most recent delivery: each event replaces the
// stored set wholesale.
type Issue struct {
	ID             int64
	RepositoryID   int64
	WebhookEventID int64
	GitHubID       int64
	Number         int
	Title          string
	State          IssueState
	Author         string
	Labels         []string
	URL            string
	OpenedAt       time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
