package model

// PRState represents the state of a pull request. Merged is terminal: once a
// pull request is recorded as merged, later events cannot regress it to closed.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// IssueState represents the state of an issue.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// Recognized webhook event types. Deliveries of any other type are stored for
// audit but skip extraction.
const (
	EventTypePush        = "push"
	EventTypePullRequest = "pull_request"
	EventTypeIssues      = "issues"
)
