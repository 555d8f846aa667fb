package model

import "time"

// Repository is a GitHub repository referenced by at least one webhook
// delivery. It is created on first reference and updated in place on every
// subsequent event carrying the same GitHubID.
type Repository struct {
	ID          int64
	GitHubID    int64
	Name        string
	FullName    string
	Owner       string
	Description string
	URL         string
	IsPrivate   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
