package github

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atlasops/plansync/internal/core/logging"
	"github.com/atlasops/plansync/pkg/executil"
	"github.com/rs/zerolog"
)

// issueJSONFields are the fields requested from gh's --json flag.
const issueJSONFields = "number,title,body,state,labels,updatedAt,url"

// listLimit bounds how many issues a single listing fetches.
const listLimit = 200

var (
	sshRemotePattern   = regexp.MustCompile(`git@github\.com:([^/]+)/(.+?)(?:\.git)?$`)
	httpsRemotePattern = regexp.MustCompile(`github\.com/([^/]+)/(.+?)(?:\.git)?$`)
)

// CLIClient implements Client by shelling out to the gh CLI, the same
// tool users already authenticate with.
type CLIClient struct {
	exec    executil.Executor
	ghPath  string
	gitPath string
	log     zerolog.Logger

	tokenMu sync.Mutex
	token   string
}

// NewCLIClient creates a gh-backed client. Empty paths default to the
// binaries on PATH.
func NewCLIClient(exec executil.Executor, ghPath, gitPath string) *CLIClient {
	if ghPath == "" {
		ghPath = "gh"
	}
	if gitPath == "" {
		gitPath = "git"
	}
	return &CLIClient{
		exec:    exec,
		ghPath:  ghPath,
		gitPath: gitPath,
		log:     logging.Component("github"),
	}
}

var _ Client = (*CLIClient)(nil)

// issueJSON is the raw gh CLI JSON shape. gh reports state uppercase
// and labels as objects.
type issueJSON struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	UpdatedAt time.Time `json:"updatedAt"`
	URL       string    `json:"url"`
}

func (j issueJSON) toIssue() Issue {
	labels := make([]string, 0, len(j.Labels))
	for _, l := range j.Labels {
		labels = append(labels, l.Name)
	}
	return Issue{
		Number:    j.Number,
		Title:     j.Title,
		Body:      j.Body,
		State:     IssueState(strings.ToLower(j.State)),
		Labels:    labels,
		UpdatedAt: j.UpdatedAt,
		URL:       j.URL,
	}
}

// CreateIssue implements Client. gh prints the new issue's URL; the
// issue number is its last path segment, which saves a follow-up fetch.
func (c *CLIClient) CreateIssue(ctx context.Context, repo string, opts CreateIssueOptions) (Issue, error) {
	args := []string{"issue", "create", "-R", repo, "-t", opts.Title, "-b", opts.Body}
	if len(opts.Labels) > 0 {
		args = append(args, "-l", strings.Join(opts.Labels, ","))
	}
	if opts.Project != "" {
		args = append(args, "-p", opts.Project)
	}

	out, err := c.exec.Output(ctx, c.ghPath, args...)
	if err != nil {
		return Issue{}, fmt.Errorf("create issue %q: %w", opts.Title, err)
	}

	url := strings.TrimSpace(string(out))
	number, err := issueNumberFromURL(url)
	if err != nil {
		return Issue{}, fmt.Errorf("create issue %q: %w", opts.Title, err)
	}

	c.log.Debug().Int("issue", number).Str("repo", repo).Msg("created issue")
	return Issue{
		Number:    number,
		Title:     opts.Title,
		Body:      opts.Body,
		State:     StateOpen,
		Labels:    opts.Labels,
		UpdatedAt: time.Now().UTC(),
		URL:       url,
	}, nil
}

// CloseIssue implements Client.
func (c *CLIClient) CloseIssue(ctx context.Context, repo string, number int) error {
	_, err := c.exec.Output(ctx, c.ghPath, "issue", "close", strconv.Itoa(number), "-R", repo)
	if err != nil {
		return fmt.Errorf("close issue #%d: %w", number, err)
	}
	return nil
}

// ReopenIssue implements Client.
func (c *CLIClient) ReopenIssue(ctx context.Context, repo string, number int) error {
	_, err := c.exec.Output(ctx, c.ghPath, "issue", "reopen", strconv.Itoa(number), "-R", repo)
	if err != nil {
		return fmt.Errorf("reopen issue #%d: %w", number, err)
	}
	return nil
}

// ListIssues implements Client.
func (c *CLIClient) ListIssues(ctx context.Context, repo string, filters ListFilters) ([]Issue, error) {
	args := []string{
		"issue", "list",
		"-R", repo,
		"--json", issueJSONFields,
		"-L", strconv.Itoa(listLimit),
	}
	if len(filters.Labels) > 0 {
		args = append(args, "-l", strings.Join(filters.Labels, ","))
	}
	if filters.State != "" {
		args = append(args, "-s", filters.State)
	}

	out, err := c.exec.Output(ctx, c.ghPath, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	var raw []issueJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse issue list: %w", err)
	}

	issues := make([]Issue, 0, len(raw))
	for _, j := range raw {
		issues = append(issues, j.toIssue())
	}
	return issues, nil
}

// SetLabels implements Client.
func (c *CLIClient) SetLabels(ctx context.Context, repo string, number int, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	args := []string{"issue", "edit", strconv.Itoa(number), "-R", repo}
	if len(add) > 0 {
		args = append(args, "--add-label", strings.Join(add, ","))
	}
	if len(remove) > 0 {
		args = append(args, "--remove-label", strings.Join(remove, ","))
	}
	if _, err := c.exec.Output(ctx, c.ghPath, args...); err != nil {
		return fmt.Errorf("edit labels on issue #%d: %w", number, err)
	}
	return nil
}

// EnsureLabels implements Client. --force makes creation idempotent.
func (c *CLIClient) EnsureLabels(ctx context.Context, repo string, labels []string) error {
	for _, label := range labels {
		_, err := c.exec.Output(ctx, c.ghPath,
			"label", "create", label,
			"-R", repo,
			"--force",
			"-d", "plansync status label",
		)
		if err != nil {
			return fmt.Errorf("ensure label %q: %w", label, err)
		}
	}
	return nil
}

// CheckAuth verifies the gh CLI is installed and logged in.
func (c *CLIClient) CheckAuth(ctx context.Context) error {
	if _, err := c.exec.Output(ctx, c.ghPath, "auth", "status"); err != nil {
		return &AuthError{Reason: "gh is not authenticated, run: gh auth login"}
	}
	return nil
}

// AuthToken returns the gh CLI's API token, fetched once per process.
func (c *CLIClient) AuthToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	out, err := c.exec.Output(ctx, c.ghPath, "auth", "token")
	if err != nil {
		return "", &AuthError{Reason: "could not read gh token, run: gh auth login"}
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", &AuthError{Reason: "gh returned an empty token"}
	}
	c.token = token
	return token, nil
}

// DetectRepo resolves the owner/repo slug from the directory's git
// origin remote. SSH and HTTPS remotes are both understood.
func (c *CLIClient) DetectRepo(ctx context.Context, dir string) (string, error) {
	if _, err := c.exec.OutputDir(ctx, dir, c.gitPath, "rev-parse", "--is-inside-work-tree"); err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}

	out, err := c.exec.OutputDir(ctx, dir, c.gitPath, "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("read origin remote: %w", err)
	}

	url := strings.TrimSpace(string(out))
	if m := sshRemotePattern.FindStringSubmatch(url); m != nil {
		return m[1] + "/" + m[2], nil
	}
	if m := httpsRemotePattern.FindStringSubmatch(url); m != nil {
		return m[1] + "/" + m[2], nil
	}
	return "", fmt.Errorf("origin remote %q is not a github repository", url)
}

func issueNumberFromURL(url string) (int, error) {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0, fmt.Errorf("unexpected issue url %q", url)
	}
	number, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("unexpected issue url %q", url)
	}
	return number, nil
}
