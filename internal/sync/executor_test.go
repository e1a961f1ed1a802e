package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/github"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory github.Client with injectable failures
// and in-flight tracking.
type fakeClient struct {
	mu          sync.Mutex
	nextNumber  int
	created     []github.CreateIssueOptions
	closed      []int
	reopened    []int
	ensured     []string
	calls       int
	inFlight    int
	maxInFlight int

	createFn func(opts github.CreateIssueOptions) error
	closeFn  func(number int) error
	listFn   func() ([]github.Issue, error)
}

func (f *fakeClient) enter() {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeClient) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeClient) CreateIssue(_ context.Context, _ string, opts github.CreateIssueOptions) (github.Issue, error) {
	f.enter()
	defer f.leave()
	// Simulated latency so concurrent calls overlap.
	time.Sleep(time.Millisecond)

	if f.createFn != nil {
		if err := f.createFn(opts); err != nil {
			return github.Issue{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNumber++
	f.created = append(f.created, opts)
	return github.Issue{
		Number: f.nextNumber,
		Title:  opts.Title,
		State:  github.StateOpen,
		Labels: opts.Labels,
		URL:    fmt.Sprintf("https://github.com/octo/rocket/issues/%d", f.nextNumber),
	}, nil
}

func (f *fakeClient) CloseIssue(_ context.Context, _ string, number int) error {
	f.enter()
	defer f.leave()
	if f.closeFn != nil {
		if err := f.closeFn(number); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, number)
	return nil
}

func (f *fakeClient) ReopenIssue(_ context.Context, _ string, number int) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopened = append(f.reopened, number)
	return nil
}

func (f *fakeClient) ListIssues(_ context.Context, _ string, _ github.ListFilters) ([]github.Issue, error) {
	f.enter()
	defer f.leave()
	if f.listFn != nil {
		return f.listFn()
	}
	return nil, nil
}

func (f *fakeClient) SetLabels(_ context.Context, _ string, _ int, _, _ []string) error { return nil }

func (f *fakeClient) EnsureLabels(_ context.Context, _ string, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, labels...)
	return nil
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, BaseDelayMS: 10, MaxDelayMS: 50, CallTimeoutMS: 1000}
}

// testExecutor returns an executor whose sleeps are recorded instead
// of slept.
func testExecutor(client github.Client, concurrency int) (*Executor, *[]time.Duration) {
	e := NewExecutor(client, testRetry(), concurrency)
	delays := &[]time.Duration{}
	var mu sync.Mutex
	e.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return nil
	}
	return e, delays
}

func buildOpts(item plan.Item) github.CreateIssueOptions {
	return github.CreateIssueOptions{Title: item.Content}
}

func createActions(n int) []Action {
	actions := make([]Action, n)
	for i := range actions {
		actions[i] = Action{Kind: ActionCreate, Item: item(fmt.Sprintf("task %d", i), plan.StatusPending)}
	}
	return actions
}

func TestExecutor_PreservesInputOrder(t *testing.T) {
	client := &fakeClient{}
	e, _ := testExecutor(client, 5)

	actions := createActions(20)
	outcomes := e.ExecutePush(context.Background(), "octo/rocket", actions, buildOpts)

	require.Len(t, outcomes, 20)
	for i, outcome := range outcomes {
		assert.Equal(t, actions[i].Item.Key, outcome.Action.Item.Key, "outcome %d out of order", i)
		assert.NoError(t, outcome.Err)
		assert.NotZero(t, outcome.Issue.Number)
	}
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	client := &fakeClient{}
	e, _ := testExecutor(client, 5)

	e.ExecutePush(context.Background(), "octo/rocket", createActions(30), buildOpts)

	assert.LessOrEqual(t, client.maxInFlight, 5)
	assert.Len(t, client.created, 30)
}

func TestExecutor_FailureIsolation(t *testing.T) {
	client := &fakeClient{createFn: func(opts github.CreateIssueOptions) error {
		if opts.Title == "task 3" {
			return &github.HTTPError{StatusCode: 422, Message: "Validation Failed"}
		}
		return nil
	}}
	e, _ := testExecutor(client, 5)

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", createActions(6), buildOpts)

	failed := 0
	for i, outcome := range outcomes {
		if i == 3 {
			require.Error(t, outcome.Err)
			failed++
			continue
		}
		assert.NoError(t, outcome.Err)
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, client.created, 5)
}

func TestExecutor_RetriesTransientFailures(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return &github.HTTPError{StatusCode: 503}
		}
		return nil
	}}
	e, delays := testExecutor(client, 1)

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)

	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *delays, 2)
}

func TestExecutor_NonRetryableFailsFast(t *testing.T) {
	client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
		return &github.HTTPError{StatusCode: 404}
	}}
	e, delays := testExecutor(client, 1)

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)

	require.Error(t, outcomes[0].Err)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *delays)
}

func TestExecutor_AuthErrorNotRetried(t *testing.T) {
	client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
		return &github.AuthError{Reason: "token revoked"}
	}}
	e, delays := testExecutor(client, 1)

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)

	var authErr *github.AuthError
	require.ErrorAs(t, outcomes[0].Err, &authErr)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *delays)
}

func TestExecutor_RetryAfterOverridesBackoff(t *testing.T) {
	t.Run("hint within cap", func(t *testing.T) {
		client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
			return &github.RateLimitError{RetryAfter: 25 * time.Millisecond}
		}}
		e, delays := testExecutor(client, 1)

		e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)

		require.Len(t, *delays, 2)
		for _, d := range *delays {
			assert.Equal(t, 25*time.Millisecond, d)
		}
	})

	t.Run("hint capped at max delay", func(t *testing.T) {
		client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
			return &github.RateLimitError{RetryAfter: time.Hour}
		}}
		e, delays := testExecutor(client, 1)

		e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)

		require.Len(t, *delays, 2)
		for _, d := range *delays {
			assert.Equal(t, testRetry().MaxDelay(), d)
		}
	})
}

func TestExecutor_BackoffBound(t *testing.T) {
	// A full run of rate-limited attempts never sleeps more than
	// maxAttempts * maxDelay in total.
	client := &fakeClient{createFn: func(_ github.CreateIssueOptions) error {
		return &github.RateLimitError{}
	}}
	e, delays := testExecutor(client, 1)

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", createActions(1), buildOpts)
	require.Error(t, outcomes[0].Err)

	retry := testRetry()
	var total time.Duration
	for _, d := range *delays {
		assert.LessOrEqual(t, d, retry.MaxDelay())
		total += d
	}
	assert.LessOrEqual(t, total, time.Duration(retry.MaxAttempts)*retry.MaxDelay())
}

func TestExecutor_BackoffDelayWithinBounds(t *testing.T) {
	e := NewExecutor(&fakeClient{}, config.RetryConfig{MaxAttempts: 3, BaseDelayMS: 500, MaxDelayMS: 8000}, 1)

	for attempt := 1; attempt <= 5; attempt++ {
		exp := 500 * time.Millisecond << (attempt - 1)
		for range 50 {
			d := e.backoffDelay(attempt)
			ceiling := exp + exp*3/10
			if ceiling > 8*time.Second {
				ceiling = 8 * time.Second
			}
			floor := exp
			if floor > 8*time.Second {
				floor = 8 * time.Second
			}
			assert.GreaterOrEqual(t, d, floor)
			assert.LessOrEqual(t, d, ceiling)
		}
	}
}

func TestExecutor_CallTimeoutIsRetryable(t *testing.T) {
	client := &fakeClient{createFn: nil}
	e := NewExecutor(client, config.RetryConfig{MaxAttempts: 2, BaseDelayMS: 1, MaxDelayMS: 5, CallTimeoutMS: 10}, 1)
	var delays []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	var attempts int
	err := e.Do(context.Background(), "slow call", func(ctx context.Context) error {
		attempts++
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, attempts, "timed-out attempt should be retried")
	assert.Len(t, delays, 1)
}

func TestExecutor_SkipsMakeNoCalls(t *testing.T) {
	client := &fakeClient{}
	e, _ := testExecutor(client, 5)

	actions := []Action{
		{Kind: ActionSkip, Item: item("done", plan.StatusCompleted), Reason: ReasonAlreadySynced},
		{Kind: ActionSkip, Item: item("disputed", plan.StatusPending), Reason: ReasonDeferred},
	}
	outcomes := e.ExecutePush(context.Background(), "octo/rocket", actions, buildOpts)

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Zero(t, client.calls)
}

func TestExecutor_MixedActions(t *testing.T) {
	client := &fakeClient{}
	e, _ := testExecutor(client, 5)

	closedIssue := issue(3, github.StateClosed, syncedAt)
	openIssue := issue(4, github.StateOpen, syncedAt)
	actions := []Action{
		{Kind: ActionCreate, Item: item("new", plan.StatusPending)},
		{Kind: ActionClose, Item: item("finished", plan.StatusCompleted), Issue: &openIssue},
		{Kind: ActionReopen, Item: item("revived", plan.StatusPending), Issue: &closedIssue},
	}
	outcomes := e.ExecutePush(context.Background(), "octo/rocket", actions, buildOpts)

	for _, outcome := range outcomes {
		require.NoError(t, outcome.Err)
	}
	assert.Len(t, client.created, 1)
	assert.Equal(t, []int{4}, client.closed)
	assert.Equal(t, []int{3}, client.reopened)
	assert.Equal(t, 4, outcomes[1].Issue.Number)
}

// fakeBatcher returns canned batch results.
type fakeBatcher struct {
	calls   int
	results func(opts []github.CreateIssueOptions) []github.BatchResult
}

func (f *fakeBatcher) CreateIssuesBatch(_ context.Context, _ string, opts []github.CreateIssueOptions) ([]github.BatchResult, error) {
	f.calls++
	return f.results(opts), nil
}

func TestExecutor_BatcherCoalescesCreates(t *testing.T) {
	client := &fakeClient{}
	batcher := &fakeBatcher{results: func(opts []github.CreateIssueOptions) []github.BatchResult {
		results := make([]github.BatchResult, len(opts))
		for i, o := range opts {
			if o.Title == "task 1" {
				results[i] = github.BatchResult{Err: errors.New("label not found")}
				continue
			}
			results[i] = github.BatchResult{Issue: github.Issue{Number: 100 + i, Title: o.Title, State: github.StateOpen}}
		}
		return results
	}}
	e, _ := testExecutor(client, 5)
	e.WithBatcher(batcher)

	openIssue := issue(9, github.StateOpen, syncedAt)
	actions := append(createActions(3),
		Action{Kind: ActionClose, Item: item("finished", plan.StatusCompleted), Issue: &openIssue})

	outcomes := e.ExecutePush(context.Background(), "octo/rocket", actions, buildOpts)

	assert.Equal(t, 1, batcher.calls, "all creates should share one batch call")
	assert.Empty(t, client.created, "creates must not fall through to the per-issue path")

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 100, outcomes[0].Issue.Number)
	require.Error(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)

	// The close action still runs through the normal path.
	assert.NoError(t, outcomes[3].Err)
	assert.Equal(t, []int{9}, client.closed)
}
