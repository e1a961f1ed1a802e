// Package sync implements the plan↔issue reconciliation engine: action
// computation, conflict resolution, resilient execution and the
// orchestrating service.
package sync

import (
	"fmt"
	"regexp"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/github"
	"github.com/atlasops/plansync/internal/core/plan"
)

// ActionKind discriminates push actions.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionClose  ActionKind = "close"
	ActionReopen ActionKind = "reopen"
	ActionSkip   ActionKind = "skip"
)

// Skip reasons. Conflict skips carry enough detail for the result's
// conflict list; the deferred reason marks items waiting on a manual
// decision under the prompt strategy.
const (
	ReasonAlreadySynced = "already synced"
	ReasonStaleMapping  = "issue not found, recreating"
	ReasonDeferred      = "conflict deferred to manual resolution"
)

// Action is one computed push mutation. Issue is nil for creates.
type Action struct {
	Kind   ActionKind
	Item   plan.Item
	Issue  *github.Issue
	Reason string
}

// IsConflict reports whether the action is a skip caused by a status
// disagreement rather than an already-synced pair.
func (a Action) IsConflict() bool {
	return a.Kind == ActionSkip && a.Reason != ReasonAlreadySynced && a.Reason != ""
}

// PullUpdate is one local status change implied by remote state.
type PullUpdate struct {
	Item      plan.Item
	NewStatus plan.Status
	Issue     github.Issue
}

// ComputePushActions decides, for every local item, what the remote
// side needs: a fresh issue, a close, a reopen, or nothing. It is a
// pure function of its inputs.
func ComputePushActions(items []plan.Item, state *plan.SyncState, remote []github.Issue, strategy Strategy) []Action {
	issueByNumber := make(map[int]github.Issue, len(remote))
	for _, issue := range remote {
		issueByNumber[issue.Number] = issue
	}

	actions := make([]Action, 0, len(items))
	for _, item := range items {
		mapping, ok := state.Mapping(item.Key)
		if !ok {
			actions = append(actions, Action{Kind: ActionCreate, Item: item})
			continue
		}

		issue, found := issueByNumber[mapping.IssueID]
		if !found {
			// The mapped issue disappeared remotely. Recreate and let
			// the new issue id overwrite the stale mapping.
			actions = append(actions, Action{Kind: ActionCreate, Item: item, Reason: ReasonStaleMapping})
			continue
		}

		localDone := item.Status.Completed()
		remoteDone := issue.State == github.StateClosed

		switch {
		case localDone == remoteDone:
			actions = append(actions, Action{Kind: ActionSkip, Item: item, Issue: &issue, Reason: ReasonAlreadySynced})
		case localDone && !remoteDone:
			actions = append(actions, Action{Kind: ActionClose, Item: item, Issue: &issue})
		default:
			// Local open, remote closed: only local_wins pushes over
			// the remote decision. Everything else leaves the issue
			// alone and lets pull (or the user) settle it.
			switch strategy {
			case StrategyLocalWins:
				actions = append(actions, Action{Kind: ActionReopen, Item: item, Issue: &issue})
			case StrategyPrompt:
				actions = append(actions, Action{Kind: ActionSkip, Item: item, Issue: &issue, Reason: ReasonDeferred})
			default:
				actions = append(actions, Action{
					Kind:   ActionSkip,
					Item:   item,
					Issue:  &issue,
					Reason: fmt.Sprintf("conflict: local=%s, remote=closed", item.Status),
				})
			}
		}
	}
	return actions
}

// ComputePullActions decides which local items need a status flip to
// match their remote issue. Like the push computation it is pure.
func ComputePullActions(items []plan.Item, state *plan.SyncState, remote []github.Issue, strategy Strategy) []PullUpdate {
	if state == nil {
		return nil
	}

	issueByNumber := make(map[int]github.Issue, len(remote))
	for _, issue := range remote {
		issueByNumber[issue.Number] = issue
	}
	itemByKey := make(map[string]plan.Item, len(items))
	for _, item := range items {
		itemByKey[item.Key] = item
	}

	var updates []PullUpdate
	for _, mapping := range state.Mappings {
		issue, foundIssue := issueByNumber[mapping.IssueID]
		item, foundItem := itemByKey[mapping.Key]
		if !foundIssue || !foundItem {
			continue
		}

		localDone := item.Status.Completed()
		remoteDone := issue.State == github.StateClosed

		switch {
		case remoteDone && !localDone:
			if strategy == StrategyRemoteWins || strategy == StrategyNewerWins {
				updates = append(updates, PullUpdate{Item: item, NewStatus: plan.StatusCompleted, Issue: issue})
			}
		case !remoteDone && localDone:
			// The issue may have been reopened after our last sync.
			switch strategy {
			case StrategyRemoteWins:
				updates = append(updates, PullUpdate{Item: item, NewStatus: plan.StatusPending, Issue: issue})
			case StrategyNewerWins:
				if Resolve(StrategyNewerWins, mapping, issue.UpdatedAt) == ResolutionRemote {
					updates = append(updates, PullUpdate{Item: item, NewStatus: plan.StatusPending, Issue: issue})
				}
			}
		}
	}
	return updates
}

var phaseNumberPattern = regexp.MustCompile(`(?i)Phase\s*(\d+)`)

// IssueTitle renders the remote issue title for an item. Items under a
// numbered phase get a [P<n>] prefix.
func IssueTitle(item plan.Item) string {
	if m := phaseNumberPattern.FindStringSubmatch(item.Phase); m != nil {
		return fmt.Sprintf("[P%s] %s", m[1], item.Content)
	}
	return item.Content
}

// IssueBody renders the remote issue body for an item.
func IssueBody(item plan.Item, project string) string {
	phase := item.Phase
	if phase == "" {
		phase = "N/A"
	}
	return fmt.Sprintf(`## Plan Item

**Project:** %s
**Phase:** %s
**Status:** %s

---

*Synced by plansync*`, project, phase, item.Status)
}

// StatusLabel maps an item status to its configured label.
func StatusLabel(status plan.Status, labels config.Labels) string {
	switch status {
	case plan.StatusInProgress:
		return labels.InProgress
	case plan.StatusCompleted:
		return labels.Completed
	default:
		return labels.Pending
	}
}
