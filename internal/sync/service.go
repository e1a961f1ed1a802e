package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/github"
	"github.com/atlasops/plansync/internal/core/logging"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/atlasops/plansync/pkg/randid"
	"github.com/rs/zerolog"
)

// ErrNeverPushed is returned by pull when the plan has no repository
// in its sync state yet.
var ErrNeverPushed = errors.New("plan has not been pushed yet, run push first")

// Remote bundles the issue operations with the auth and repository
// detection the orchestrator needs around them.
type Remote interface {
	github.Client
	CheckAuth(ctx context.Context) error
	DetectRepo(ctx context.Context, dir string) (string, error)
}

// Options parameterizes one sync run.
type Options struct {
	// PlanPath is the plan document to reconcile.
	PlanPath string
	// Dir is the working directory used for repository detection.
	Dir string
	// Repo overrides repository resolution when set.
	Repo string
	// Project is the plan's project name, used in issue bodies.
	Project string
	// DryRun computes and reports actions without touching the remote
	// or the plan document.
	DryRun bool
}

// Service orchestrates sync runs. It owns the SyncState for the
// duration of a run and is the only writer back to the plan store.
type Service struct {
	store  plan.Store
	remote Remote
	exec   *Executor
	cfg    *config.Config
	log    zerolog.Logger

	now func() time.Time
}

// NewService creates the orchestrator.
func NewService(store plan.Store, remote Remote, exec *Executor, cfg *config.Config) *Service {
	return &Service{
		store:  store,
		remote: remote,
		exec:   exec,
		cfg:    cfg,
		log:    logging.Component("sync"),
		now:    time.Now,
	}
}

// Push propagates local item status to the remote tracker. Partial
// failures end up in the result's error list; only run-level problems
// (auth, missing plan, unresolvable repository) return an error.
func (s *Service) Push(ctx context.Context, opts Options) (*Result, error) {
	log := s.runLogger("push")

	if err := s.remote.CheckAuth(ctx); err != nil {
		return nil, err
	}

	items, err := s.store.LoadItems(ctx, opts.PlanPath)
	if err != nil {
		return nil, err
	}

	result := &Result{DryRun: opts.DryRun}
	if len(items) == 0 {
		log.Info().Msg("no items to sync")
		return result, nil
	}

	state, err := s.store.LoadState(ctx, opts.PlanPath)
	if err != nil {
		return nil, err
	}

	repo, err := s.resolveRepo(ctx, opts, state)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = plan.NewSyncState(repo)
	} else {
		state.Repo = repo
	}

	issues, err := s.listIssues(ctx, repo)
	if err != nil {
		return nil, err
	}

	strategy := s.strategy()
	actions := ComputePushActions(items, state, issues, strategy)
	s.collectConflicts(result, actions)

	if opts.DryRun {
		for _, action := range actions {
			switch action.Kind {
			case ActionCreate:
				result.Created++
			case ActionClose:
				result.Closed++
			case ActionReopen:
				result.Updated++
			}
		}
		log.Info().
			Int("created", result.Created).
			Int("closed", result.Closed).
			Int("updated", result.Updated).
			Msg("dry run complete")
		return result, nil
	}

	build := func(item plan.Item) github.CreateIssueOptions {
		return github.CreateIssueOptions{
			Title: IssueTitle(item),
			Body:  IssueBody(item, opts.Project),
			Labels: []string{
				s.cfg.Labels.SyncMarker,
				StatusLabel(item.Status, s.cfg.Labels),
			},
			Project: s.cfg.Sync.Project,
		}
	}

	outcomes := s.exec.ExecutePush(ctx, repo, actions, build)
	now := s.now().UTC()
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			itemErr := ItemError{Item: outcome.Action.Item.Content, Message: outcome.Err.Error()}
			if outcome.Action.Issue != nil {
				itemErr.Issue = outcome.Action.Issue.Number
			}
			result.Errors = append(result.Errors, itemErr)
			continue
		}

		switch outcome.Action.Kind {
		case ActionCreate:
			state.Upsert(outcome.Action.Item.Key, outcome.Issue.Number, outcome.Issue.URL, now)
			result.Created++
		case ActionClose:
			state.Upsert(outcome.Action.Item.Key, outcome.Issue.Number, outcome.Issue.URL, now)
			result.Closed++
		case ActionReopen:
			state.Upsert(outcome.Action.Item.Key, outcome.Issue.Number, outcome.Issue.URL, now)
			result.Updated++
		}
	}

	// One state write per run. A crash before this point leaves the
	// previous state intact and the run safe to repeat.
	if err := s.store.SaveState(ctx, opts.PlanPath, state); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}

	log.Info().
		Int("created", result.Created).
		Int("closed", result.Closed).
		Int("updated", result.Updated).
		Int("errors", len(result.Errors)).
		Msg("push complete")
	return result, nil
}

// Pull propagates remote issue status back into the plan document.
func (s *Service) Pull(ctx context.Context, opts Options) (*Result, error) {
	log := s.runLogger("pull")

	if err := s.remote.CheckAuth(ctx); err != nil {
		return nil, err
	}

	items, err := s.store.LoadItems(ctx, opts.PlanPath)
	if err != nil {
		return nil, err
	}
	state, err := s.store.LoadState(ctx, opts.PlanPath)
	if err != nil {
		return nil, err
	}
	if state == nil || state.Repo == "" {
		return nil, ErrNeverPushed
	}

	issues, err := s.listIssues(ctx, state.Repo)
	if err != nil {
		return nil, err
	}

	updates := ComputePullActions(items, state, issues, s.strategy())

	result := &Result{DryRun: opts.DryRun, Updated: len(updates)}
	if len(updates) == 0 || opts.DryRun {
		log.Info().Int("updated", result.Updated).Bool("dry_run", opts.DryRun).Msg("pull complete")
		return result, nil
	}

	statusUpdates := make([]plan.StatusUpdate, 0, len(updates))
	for _, u := range updates {
		statusUpdates = append(statusUpdates, plan.StatusUpdate{Key: u.Item.Key, Status: u.NewStatus})
	}
	if err := s.store.ApplyStatusUpdates(ctx, opts.PlanPath, statusUpdates); err != nil {
		return nil, fmt.Errorf("apply status updates: %w", err)
	}

	now := s.now().UTC()
	for _, u := range updates {
		state.Upsert(u.Item.Key, u.Issue.Number, u.Issue.URL, now)
	}
	if err := s.store.SaveState(ctx, opts.PlanPath, state); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}

	log.Info().Int("updated", result.Updated).Msg("pull complete")
	return result, nil
}

// Sync runs push to completion, then pull against the freshly
// persisted state, and merges the two results.
func (s *Service) Sync(ctx context.Context, opts Options) (*Result, error) {
	result, err := s.Push(ctx, opts)
	if err != nil {
		return nil, err
	}

	pullResult, err := s.Pull(ctx, opts)
	if err != nil {
		// A dry-run push of a never-synced plan persists nothing, so
		// there is legitimately nothing to pull.
		if errors.Is(err, ErrNeverPushed) {
			return result, nil
		}
		return nil, err
	}

	result.Merge(pullResult)
	return result, nil
}

// Status summarizes a plan's sync state without touching the network.
func (s *Service) Status(ctx context.Context, planPath string) (*Summary, error) {
	items, err := s.store.LoadItems(ctx, planPath)
	if err != nil {
		return nil, err
	}
	state, err := s.store.LoadState(ctx, planPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Plan: planPath, Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case plan.StatusPending:
			summary.Pending++
		case plan.StatusCompleted:
			summary.Completed++
		}
	}
	if state != nil {
		summary.Repo = state.Repo
		summary.Synced = len(state.Mappings)
		summary.LastSync = state.LastSync
	}
	return summary, nil
}

// Init verifies auth, resolves the repository and makes sure the sync
// labels exist on it. Returns the resolved repository slug.
func (s *Service) Init(ctx context.Context, dir, repoFlag string) (string, error) {
	if err := s.remote.CheckAuth(ctx); err != nil {
		return "", err
	}

	repo := repoFlag
	if repo == "" {
		detected, err := s.remote.DetectRepo(ctx, dir)
		if err != nil {
			return "", fmt.Errorf("no repository given and none detected: %w", err)
		}
		repo = detected
	}
	if err := config.RepoSlug(repo); err != nil {
		return "", fmt.Errorf("repository %q: %w", repo, err)
	}

	if err := s.remote.EnsureLabels(ctx, repo, s.cfg.Labels.All()); err != nil {
		return "", err
	}
	return repo, nil
}

func (s *Service) resolveRepo(ctx context.Context, opts Options, state *plan.SyncState) (string, error) {
	repo := opts.Repo
	if repo == "" && state != nil {
		repo = state.Repo
	}
	if repo == "" {
		detected, err := s.remote.DetectRepo(ctx, opts.Dir)
		if err != nil {
			return "", fmt.Errorf("no repository configured and none detected: %w", err)
		}
		repo = detected
	}
	if err := config.RepoSlug(repo); err != nil {
		return "", fmt.Errorf("repository %q: %w", repo, err)
	}
	return repo, nil
}

// listIssues fetches every issue carrying the sync marker, open and
// closed, under the executor's retry policy.
func (s *Service) listIssues(ctx context.Context, repo string) ([]github.Issue, error) {
	var issues []github.Issue
	err := s.exec.Do(ctx, "list issues", func(ctx context.Context) error {
		list, err := s.remote.ListIssues(ctx, repo, github.ListFilters{
			Labels: []string{s.cfg.Labels.SyncMarker},
			State:  "all",
		})
		if err == nil {
			issues = list
		}
		return err
	})
	return issues, err
}

func (s *Service) collectConflicts(result *Result, actions []Action) {
	for _, action := range actions {
		if !action.IsConflict() || action.Kind != ActionSkip || action.Issue == nil {
			continue
		}
		resolution := "skipped"
		if action.Reason == ReasonDeferred {
			resolution = "deferred"
		}
		result.Conflicts = append(result.Conflicts, Conflict{
			Key:        action.Item.Key,
			Item:       action.Item.Content,
			Local:      string(action.Item.Status),
			Remote:     string(action.Issue.State),
			Resolution: resolution,
		})
	}
}

func (s *Service) strategy() Strategy {
	strategy, err := ParseStrategy(s.cfg.Sync.ConflictStrategy)
	if err != nil {
		return StrategyNewerWins
	}
	return strategy
}

func (s *Service) runLogger(op string) zerolog.Logger {
	return s.log.With().Str("run_id", randid.Generate(8)).Str("op", op).Logger()
}
