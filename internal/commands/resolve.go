package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/atlasops/plansync/internal/sync"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// resolveConflicts walks the deferred conflicts of a run and asks the
// operator to settle each one. It only engages under the prompt
// strategy, with stdin attached to a terminal, on a run that mutates;
// in every other case the conflicts stay deferred for the next run.
func (f *Flags) resolveConflicts(ctx context.Context, opts sync.Options, result *sync.Result) error {
	if f.Config.Sync.ConflictStrategy != config.StrategyPrompt || result.DryRun {
		return nil
	}

	deferred := make([]*sync.Conflict, 0, len(result.Conflicts))
	for i := range result.Conflicts {
		if result.Conflicts[i].Resolution == "deferred" {
			deferred = append(deferred, &result.Conflicts[i])
		}
	}
	if len(deferred) == 0 {
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Debug().Int("conflicts", len(deferred)).Msg("stdin is not a terminal, leaving conflicts deferred")
		return nil
	}

	state, err := f.Store.LoadState(ctx, opts.PlanPath)
	if err != nil || state == nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	changed := false

	for _, conflict := range deferred {
		mapping, ok := state.Mapping(conflict.Key)
		if !ok {
			continue
		}

		fmt.Fprintf(os.Stderr, "%q is %s locally but issue #%d is %s.\n",
			conflict.Item, conflict.Local, mapping.IssueID, conflict.Remote)
		fmt.Fprint(os.Stderr, "Keep [l]ocal, accept [r]emote, or [s]kip? ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read resolution: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "l", "local":
			if err := f.Remote.ReopenIssue(ctx, state.Repo, mapping.IssueID); err != nil {
				result.Errors = append(result.Errors, sync.ItemError{
					Item:    conflict.Item,
					Issue:   mapping.IssueID,
					Message: err.Error(),
				})
				continue
			}
			conflict.Resolution = "local"
		case "r", "remote":
			update := plan.StatusUpdate{Key: conflict.Key, Status: plan.StatusCompleted}
			if err := f.Store.ApplyStatusUpdates(ctx, opts.PlanPath, []plan.StatusUpdate{update}); err != nil {
				result.Errors = append(result.Errors, sync.ItemError{
					Item:    conflict.Item,
					Issue:   mapping.IssueID,
					Message: err.Error(),
				})
				continue
			}
			conflict.Resolution = "remote"
		default:
			continue
		}

		state.Upsert(conflict.Key, mapping.IssueID, mapping.URL, time.Now().UTC())
		result.Updated++
		changed = true
	}

	if !changed {
		return nil
	}
	return f.Store.SaveState(ctx, opts.PlanPath, state)
}
