package sync

import (
	"time"
)

// Conflict records one status disagreement and how it was resolved.
type Conflict struct {
	// Key is the item's stable identity within the plan.
	Key        string `json:"key"`
	Item       string `json:"item"`
	Local      string `json:"local"`
	Remote     string `json:"remote"`
	Resolution string `json:"resolution"`
}

// ItemError is an action-scoped failure, identified by the item's
// content and, when known, its issue number.
type ItemError struct {
	Item    string `json:"item,omitempty"`
	Issue   int    `json:"issue,omitempty"`
	Message string `json:"message"`
}

func (e ItemError) Error() string {
	if e.Item != "" {
		return e.Item + ": " + e.Message
	}
	return e.Message
}

// Result summarizes one sync run. Partial failures live in Errors; a
// run with errors is still a successful function call.
type Result struct {
	Created   int         `json:"created"`
	Closed    int         `json:"closed"`
	Updated   int         `json:"updated"`
	Conflicts []Conflict  `json:"conflicts,omitempty"`
	Errors    []ItemError `json:"errors,omitempty"`
	DryRun    bool        `json:"dry_run,omitempty"`
}

// Merge folds another result into this one. Used by the two-way sync
// to combine the push and pull halves.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Closed += other.Closed
	r.Updated += other.Updated
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
	r.Errors = append(r.Errors, other.Errors...)
}

// HasErrors reports whether any action failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// Summary is the read-only sync status of a plan.
type Summary struct {
	Plan      string     `json:"plan"`
	Repo      string     `json:"repo,omitempty"`
	Total     int        `json:"total"`
	Synced    int        `json:"synced"`
	Pending   int        `json:"pending"`
	Completed int        `json:"completed"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}
