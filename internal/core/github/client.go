package github

import "context"

// Client defines the remote issue operations the sync engine needs.
type Client interface {
	// CreateIssue opens a new issue and returns it.
	CreateIssue(ctx context.Context, repo string, opts CreateIssueOptions) (Issue, error)
	// CloseIssue closes an issue by number.
	CloseIssue(ctx context.Context, repo string, number int) error
	// ReopenIssue reopens a closed issue by number.
	ReopenIssue(ctx context.Context, repo string, number int) error
	// ListIssues returns issues matching the filters.
	ListIssues(ctx context.Context, repo string, filters ListFilters) ([]Issue, error)
	// SetLabels replaces the status labels on an issue.
	SetLabels(ctx context.Context, repo string, number int, add, remove []string) error
	// EnsureLabels creates the given labels if they do not exist.
	EnsureLabels(ctx context.Context, repo string, labels []string) error
}

// BatchCreator creates many issues with one round trip. Implementations
// report per-issue outcomes so one failure never poisons the rest.
type BatchCreator interface {
	CreateIssuesBatch(ctx context.Context, repo string, issues []CreateIssueOptions) ([]BatchResult, error)
}

// TokenFunc supplies an API token for direct HTTP calls.
type TokenFunc func(ctx context.Context) (string, error)
