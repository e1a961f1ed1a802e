package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlasops/plansync/pkg/cache"
)

const defaultGraphQLEndpoint = "https://api.github.com/graphql"

// GraphQLBatcher creates many issues with a single aliased mutation.
// One HTTP round trip regardless of batch size, at the cost of a node
// ID lookup per repo and label (cached across calls).
type GraphQLBatcher struct {
	httpClient *http.Client
	token      TokenFunc
	endpoint   string

	repoIDs  *cache.Cache[string, string]
	labelIDs *cache.Cache[string, string]
}

// NewGraphQLBatcher creates a batcher. endpoint is overridable for
// tests; empty means the public GitHub GraphQL API.
func NewGraphQLBatcher(httpClient *http.Client, token TokenFunc, endpoint string) *GraphQLBatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = defaultGraphQLEndpoint
	}
	return &GraphQLBatcher{
		httpClient: httpClient,
		token:      token,
		endpoint:   endpoint,
		repoIDs:    cache.New[string, string](),
		labelIDs:   cache.New[string, string](),
	}
}

var _ BatchCreator = (*GraphQLBatcher)(nil)

// CreateIssuesBatch implements BatchCreator. Aliases i0..iN let each
// mutation succeed or fail independently in the response.
func (b *GraphQLBatcher) CreateIssuesBatch(ctx context.Context, repo string, issues []CreateIssueOptions) ([]BatchResult, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	repoID, err := b.repoNodeID(ctx, repo)
	if err != nil {
		return nil, err
	}
	if err := b.fillLabelIDs(ctx, repo, issues); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("mutation BatchCreateIssues {\n")
	for i, opts := range issues {
		fmt.Fprintf(&sb, "i%d: createIssue(input: {repositoryId: %q, title: \"%s\", body: \"%s\"",
			i, repoID, escapeGraphQL(opts.Title), escapeGraphQL(opts.Body))
		if ids := b.cachedLabelIDs(repo, opts.Labels); len(ids) > 0 {
			sb.WriteString(`, labelIds: [`)
			for j, id := range ids {
				if j > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%q", id)
			}
			sb.WriteString("]")
		}
		sb.WriteString("}) { issue { number url title state updatedAt } }\n")
	}
	sb.WriteString("}")

	var resp struct {
		Data   map[string]json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
			Path    []any  `json:"path"`
		} `json:"errors"`
	}
	if err := b.request(ctx, sb.String(), &resp); err != nil {
		return nil, err
	}

	// Map path-qualified errors back to their alias so one bad issue
	// does not obscure the rest.
	aliasErrs := make(map[string]string)
	for _, e := range resp.Errors {
		if len(e.Path) > 0 {
			if alias, ok := e.Path[0].(string); ok {
				aliasErrs[alias] = e.Message
			}
		}
	}

	results := make([]BatchResult, len(issues))
	for i, opts := range issues {
		alias := fmt.Sprintf("i%d", i)

		var node struct {
			Issue struct {
				Number    int       `json:"number"`
				URL       string    `json:"url"`
				Title     string    `json:"title"`
				State     string    `json:"state"`
				UpdatedAt time.Time `json:"updatedAt"`
			} `json:"issue"`
		}
		raw, ok := resp.Data[alias]
		if ok && string(raw) != "null" {
			ok = json.Unmarshal(raw, &node) == nil && node.Issue.Number != 0
		}
		if !ok {
			msg := aliasErrs[alias]
			if msg == "" {
				msg = "no result returned"
			}
			results[i] = BatchResult{Err: fmt.Errorf("create issue %q: %s", opts.Title, msg)}
			continue
		}

		results[i] = BatchResult{Issue: Issue{
			Number:    node.Issue.Number,
			Title:     node.Issue.Title,
			Body:      opts.Body,
			State:     IssueState(strings.ToLower(node.Issue.State)),
			Labels:    opts.Labels,
			UpdatedAt: node.Issue.UpdatedAt,
			URL:       node.Issue.URL,
		}}
	}
	return results, nil
}

func (b *GraphQLBatcher) repoNodeID(ctx context.Context, repo string) (string, error) {
	return b.repoIDs.GetOrFill(repo, func() (string, error) {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			return "", fmt.Errorf("invalid repo slug %q", repo)
		}

		var resp struct {
			Data struct {
				Repository *struct {
					ID string `json:"id"`
				} `json:"repository"`
			} `json:"data"`
		}
		query := fmt.Sprintf("query { repository(owner: %q, name: %q) { id } }", owner, name)
		if err := b.request(ctx, query, &resp); err != nil {
			return "", err
		}
		if resp.Data.Repository == nil || resp.Data.Repository.ID == "" {
			return "", fmt.Errorf("repository %s not found", repo)
		}
		return resp.Data.Repository.ID, nil
	})
}

// fillLabelIDs primes the label cache with one query for the whole
// repo when any requested label is missing from it.
func (b *GraphQLBatcher) fillLabelIDs(ctx context.Context, repo string, issues []CreateIssueOptions) error {
	missing := false
	for _, opts := range issues {
		for _, label := range opts.Labels {
			if _, ok := b.labelIDs.Get(labelKey(repo, label)); !ok {
				missing = true
			}
		}
	}
	if !missing {
		return nil
	}

	owner, name, ok := strings.Cut(repo, "/")
	if !ok {
		return fmt.Errorf("invalid repo slug %q", repo)
	}

	var resp struct {
		Data struct {
			Repository struct {
				Labels struct {
					Nodes []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"nodes"`
				} `json:"labels"`
			} `json:"repository"`
		} `json:"data"`
	}
	query := fmt.Sprintf("query { repository(owner: %q, name: %q) { labels(first: 100) { nodes { id name } } } }", owner, name)
	if err := b.request(ctx, query, &resp); err != nil {
		return err
	}

	ids := make(map[string]string, len(resp.Data.Repository.Labels.Nodes))
	for _, node := range resp.Data.Repository.Labels.Nodes {
		ids[labelKey(repo, node.Name)] = node.ID
	}
	b.labelIDs.SetBatch(ids)
	return nil
}

// cachedLabelIDs returns node IDs for the labels that resolved; labels
// unknown to the repo are skipped rather than failing the mutation.
func (b *GraphQLBatcher) cachedLabelIDs(repo string, labels []string) []string {
	ids := make([]string, 0, len(labels))
	for _, label := range labels {
		if id, ok := b.labelIDs.Get(labelKey(repo, label)); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *GraphQLBatcher) request(ctx context.Context, query string, out any) error {
	token, err := b.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), apiErrorMessage(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func labelKey(repo, label string) string {
	return repo + "\x00" + label
}

var graphqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeGraphQL(s string) string {
	return graphqlEscaper.Replace(s)
}
