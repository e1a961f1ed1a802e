package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hay-kot/criterio"
)

// repoSlugPattern matches GitHub "owner/repo" identifiers.
var repoSlugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*/[A-Za-z0-9._-]+$`)

// RepoSlug validates a repository identifier in owner/repo form.
func RepoSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return fmt.Errorf("repository is required")
	}
	if !repoSlugPattern.MatchString(slug) {
		return fmt.Errorf("must be in owner/repo form")
	}
	return nil
}

// RepoSlugField returns a criterio validation result for a repository slug.
func RepoSlugField(field, slug string) error {
	return criterio.Run(field, slug, RepoSlug)
}

// ConflictStrategy validates a conflict strategy name.
func ConflictStrategy(name string) error {
	switch name {
	case StrategyLocalWins, StrategyRemoteWins, StrategyNewerWins, StrategyPrompt:
		return nil
	}
	return fmt.Errorf("must be one of local_wins, remote_wins, newer_wins, prompt")
}

// BatchTransport validates a batch transport name.
func BatchTransport(name string) error {
	switch name {
	case BatchTransportGraphQL, BatchTransportREST:
		return nil
	}
	return fmt.Errorf("must be one of graphql, rest")
}

// labelName validates an issue label name.
func labelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("label is required")
	}
	if strings.ContainsAny(name, ",\n") {
		return fmt.Errorf("label cannot contain commas or newlines")
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return fmt.Errorf("retry.max_delay_ms must be at least retry.base_delay_ms")
	}

	return criterio.ValidateStruct(
		criterio.Run("sync.conflict_strategy", c.Sync.ConflictStrategy, ConflictStrategy),
		criterio.Run("sync.batch_transport", c.Sync.BatchTransport, BatchTransport),
		criterio.Run("labels.sync_marker", c.Labels.SyncMarker, labelName),
		criterio.Run("labels.pending", c.Labels.Pending, labelName),
		criterio.Run("labels.in_progress", c.Labels.InProgress, labelName),
		criterio.Run("labels.completed", c.Labels.Completed, labelName),
	)
}
