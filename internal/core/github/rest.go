package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultAPIBase = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// RESTClient issues direct GitHub REST API calls. It avoids one gh
// subprocess per issue, which matters when a push creates many issues
// at once.
type RESTClient struct {
	httpClient *http.Client
	token      TokenFunc
	baseURL    string
}

// NewRESTClient creates a REST client. baseURL is overridable for tests;
// empty means api.github.com.
func NewRESTClient(httpClient *http.Client, token TokenFunc, baseURL string) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	return &RESTClient{
		httpClient: httpClient,
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

var _ BatchCreator = (*RESTClient)(nil)

type restIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	UpdatedAt time.Time `json:"updated_at"`
	HTMLURL   string    `json:"html_url"`
}

func (r restIssue) toIssue() Issue {
	labels := make([]string, 0, len(r.Labels))
	for _, l := range r.Labels {
		labels = append(labels, l.Name)
	}
	return Issue{
		Number:    r.Number,
		Title:     r.Title,
		Body:      r.Body,
		State:     IssueState(strings.ToLower(r.State)),
		Labels:    labels,
		UpdatedAt: r.UpdatedAt,
		URL:       r.HTMLURL,
	}
}

// CreateIssue opens an issue via POST /repos/{repo}/issues.
func (c *RESTClient) CreateIssue(ctx context.Context, repo string, opts CreateIssueOptions) (Issue, error) {
	payload := map[string]any{
		"title":  opts.Title,
		"body":   opts.Body,
		"labels": opts.Labels,
	}

	var created restIssue
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues", repo), payload, &created)
	if err != nil {
		return Issue{}, fmt.Errorf("create issue %q: %w", opts.Title, err)
	}
	return created.toIssue(), nil
}

// CloseIssue closes an issue via PATCH.
func (c *RESTClient) CloseIssue(ctx context.Context, repo string, number int) error {
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repo, number), map[string]any{"state": "closed"}, nil)
	if err != nil {
		return fmt.Errorf("close issue #%d: %w", number, err)
	}
	return nil
}

// ReopenIssue reopens an issue via PATCH.
func (c *RESTClient) ReopenIssue(ctx context.Context, repo string, number int) error {
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repo, number), map[string]any{"state": "open"}, nil)
	if err != nil {
		return fmt.Errorf("reopen issue #%d: %w", number, err)
	}
	return nil
}

// CreateIssuesBatch implements BatchCreator by firing the REST creates
// in parallel. Results stay in input order and each failure is isolated
// to its own slot.
func (c *RESTClient) CreateIssuesBatch(ctx context.Context, repo string, issues []CreateIssueOptions) ([]BatchResult, error) {
	results := make([]BatchResult, len(issues))

	var wg sync.WaitGroup
	for i, opts := range issues {
		wg.Add(1)
		go func(i int, opts CreateIssueOptions) {
			defer wg.Done()
			issue, err := c.CreateIssue(ctx, repo, opts)
			results[i] = BatchResult{Issue: issue, Err: err}
		}(i, opts)
	}
	wg.Wait()

	return results, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), apiErrorMessage(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// apiErrorMessage pulls the "message" field out of a GitHub error body,
// falling back to the raw text.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}
	return string(body)
}
