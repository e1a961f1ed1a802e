// Package github talks to GitHub issues through the gh CLI and the
// REST/GraphQL APIs.
package github

import "time"

// IssueState is the lifecycle state of a remote issue.
type IssueState string

const (
	StateOpen   IssueState = "open"
	StateClosed IssueState = "closed"
)

// Issue is the remote issue shape the sync engine works with.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     IssueState `json:"state"`
	Labels    []string   `json:"labels"`
	UpdatedAt time.Time  `json:"updatedAt"`
	URL       string     `json:"url"`
}

// HasLabel reports whether the issue carries the given label.
func (i Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// CreateIssueOptions describes a new issue.
type CreateIssueOptions struct {
	Title   string
	Body    string
	Labels  []string
	Project string
}

// ListFilters narrows an issue listing.
type ListFilters struct {
	// Labels restricts results to issues carrying all given labels.
	Labels []string
	// State is one of "open", "closed" or "all". Empty means open.
	State string
}

// BatchResult is the outcome of one issue in a batched create. Exactly
// one of Issue or Err is meaningful.
type BatchResult struct {
	Issue Issue
	Err   error
}
