package model

import "time"

// Commit is a single commit reported by a push event, keyed by (SHA,
// RepositoryID). The same SHA may legitimately appear in multiple
// repositories (forks); within one repository a re-reported commit updates
// the existing row. WebhookEventID records the delivery that first
// introduced the commit.
type Commit struct {
	ID             int64
	RepositoryID   int64
	WebhookEventID int64
	SHA            string
	Message        string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	CommittedAt    time.Time
	URL            string
	CreatedAt      time.Time
}
