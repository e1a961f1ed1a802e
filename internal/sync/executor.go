package sync

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/github"
	"github.com/atlasops/plansync/internal/core/logging"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// backoffJitterFactor is the uniform jitter ceiling as a fraction of
// the exponential term.
const backoffJitterFactor = 0.3

// Executor runs computed actions against the remote client with
// bounded concurrency and per-call retry.
type Executor struct {
	client      github.Client
	batcher     github.BatchCreator
	retry       config.RetryConfig
	concurrency int
	log         zerolog.Logger

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client github.Client, retry config.RetryConfig, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		client:      client,
		retry:       retry,
		concurrency: concurrency,
		log:         logging.Component("executor"),
		sleep:       sleepContext,
	}
}

// WithBatcher enables single-request batch creation for Create actions.
func (e *Executor) WithBatcher(b github.BatchCreator) *Executor {
	e.batcher = b
	return e
}

// PushOutcome pairs an action with its execution result. Issue holds
// the created issue for successful creates.
type PushOutcome struct {
	Action Action
	Issue  github.Issue
	Err    error
}

// ExecutePush runs the non-skip actions. Creates go through the
// batcher in one request when one is configured; everything else runs
// concurrently up to the concurrency limit. Outcomes are returned in
// input order and one failure never aborts the rest.
func (e *Executor) ExecutePush(ctx context.Context, repo string, actions []Action, build func(plan.Item) github.CreateIssueOptions) []PushOutcome {
	outcomes := make([]PushOutcome, len(actions))
	for i := range actions {
		outcomes[i].Action = actions[i]
	}

	batched := make(map[int]bool)
	if e.batcher != nil {
		e.executeBatchCreates(ctx, repo, actions, build, outcomes, batched)
	}

	sem := semaphore.NewWeighted(int64(e.concurrency))
	var wg sync.WaitGroup
	for i, action := range actions {
		if action.Kind == ActionSkip || batched[i] {
			continue
		}
		wg.Add(1)
		go func(i int, action Action) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i].Err = err
				return
			}
			defer sem.Release(1)
			outcomes[i].Issue, outcomes[i].Err = e.runAction(ctx, repo, action, build)
		}(i, action)
	}
	wg.Wait()

	return outcomes
}

// executeBatchCreates coalesces every Create into one batched request
// and writes the per-item results back into the matching outcome slots.
func (e *Executor) executeBatchCreates(ctx context.Context, repo string, actions []Action, build func(plan.Item) github.CreateIssueOptions, outcomes []PushOutcome, batched map[int]bool) {
	var indexes []int
	var opts []github.CreateIssueOptions
	for i, action := range actions {
		if action.Kind == ActionCreate {
			indexes = append(indexes, i)
			opts = append(opts, build(action.Item))
			batched[i] = true
		}
	}
	if len(indexes) == 0 {
		return
	}

	var results []github.BatchResult
	err := e.Do(ctx, "batch create", func(ctx context.Context) error {
		r, err := e.batcher.CreateIssuesBatch(ctx, repo, opts)
		results = r
		return err
	})
	if err != nil {
		for _, i := range indexes {
			outcomes[i].Err = err
		}
		return
	}
	for j, i := range indexes {
		outcomes[i].Issue = results[j].Issue
		outcomes[i].Err = results[j].Err
	}
}

func (e *Executor) runAction(ctx context.Context, repo string, action Action, build func(plan.Item) github.CreateIssueOptions) (github.Issue, error) {
	switch action.Kind {
	case ActionCreate:
		var issue github.Issue
		err := e.Do(ctx, "create "+action.Item.Key, func(ctx context.Context) error {
			created, err := e.client.CreateIssue(ctx, repo, build(action.Item))
			if err == nil {
				issue = created
			}
			return err
		})
		return issue, err

	case ActionClose:
		err := e.Do(ctx, fmt.Sprintf("close #%d", action.Issue.Number), func(ctx context.Context) error {
			return e.client.CloseIssue(ctx, repo, action.Issue.Number)
		})
		return *action.Issue, err

	case ActionReopen:
		err := e.Do(ctx, fmt.Sprintf("reopen #%d", action.Issue.Number), func(ctx context.Context) error {
			return e.client.ReopenIssue(ctx, repo, action.Issue.Number)
		})
		return *action.Issue, err

	default:
		return github.Issue{}, nil
	}
}

// Do runs fn under the retry policy. Each attempt gets its own
// per-call timeout, and a timed-out attempt is itself retryable. A
// Retry-After hint from the server overrides the computed backoff,
// capped at the configured maximum.
func (e *Executor) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	maxAttempts := e.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		callCtx, cancel := context.WithTimeout(ctx, e.retry.CallTimeout())
		err := fn(callCtx)
		timedOut := callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err == nil {
			return nil
		}
		if timedOut {
			err = fmt.Errorf("%s: no response in %s: %w", op, e.retry.CallTimeout(), context.DeadlineExceeded)
		}
		lastErr = err

		if !github.Retryable(err) || attempt == maxAttempts {
			break
		}

		delay := e.backoffDelay(attempt)
		if hint := github.RetryAfterHint(err); hint > 0 {
			delay = hint
			if delay > e.retry.MaxDelay() {
				delay = e.retry.MaxDelay()
			}
		}

		e.log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying remote call")

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

// backoffDelay computes min(base * 2^(attempt-1) + jitter, maxDelay),
// jitter uniform in [0, 30%) of the exponential term.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	exp := float64(e.retry.BaseDelay()) * math.Pow(2, float64(attempt-1))
	delay := exp + rand.Float64()*backoffJitterFactor*exp
	if max := float64(e.retry.MaxDelay()); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
