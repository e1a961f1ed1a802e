// Package config handles configuration loading and validation for plansync.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Conflict strategy names accepted in configuration.
const (
	StrategyLocalWins  = "local_wins"
	StrategyRemoteWins = "remote_wins"
	StrategyNewerWins  = "newer_wins"
	StrategyPrompt     = "prompt"
)

// Batch transport names accepted in configuration.
const (
	BatchTransportGraphQL = "graphql"
	BatchTransportREST    = "rest"
)

// Labels defines the issue labels plansync manages on the remote repository.
// The marker label identifies issues owned by plansync; the status labels
// mirror the local item status at creation time.
type Labels struct {
	SyncMarker string `yaml:"sync_marker"`
	Pending    string `yaml:"pending"`
	InProgress string `yaml:"in_progress"`
	Completed  string `yaml:"completed"`
}

// All returns every label plansync needs to exist on the repository.
func (l Labels) All() []string {
	return []string{l.SyncMarker, l.Pending, l.InProgress, l.Completed}
}

// SyncConfig holds reconciliation behavior settings.
type SyncConfig struct {
	// ConflictStrategy decides who wins when local and remote status
	// disagree: local_wins, remote_wins, newer_wins, or prompt.
	ConflictStrategy string `yaml:"conflict_strategy"`
	// Project is an optional project board hint attached to created issues.
	Project string `yaml:"project"`
	// Concurrency bounds the number of in-flight remote calls.
	Concurrency int `yaml:"concurrency"`
	// BatchCreate coalesces issue creation into one batched request
	// instead of per-issue gh calls.
	BatchCreate bool `yaml:"batch_create"`
	// BatchTransport picks how batched creates reach the API: graphql
	// sends one aliased mutation, rest fans out parallel API calls.
	BatchTransport string `yaml:"batch_transport"`
}

// RetryConfig tunes the retry behavior for remote calls.
// Delays are in milliseconds to keep the YAML plain.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BaseDelayMS   int `yaml:"base_delay_ms"`
	MaxDelayMS    int `yaml:"max_delay_ms"`
	CallTimeoutMS int `yaml:"call_timeout_ms"`
}

// BaseDelay returns the initial backoff delay.
func (r RetryConfig) BaseDelay() time.Duration { return time.Duration(r.BaseDelayMS) * time.Millisecond }

// MaxDelay returns the backoff delay ceiling.
func (r RetryConfig) MaxDelay() time.Duration { return time.Duration(r.MaxDelayMS) * time.Millisecond }

// CallTimeout returns the per-call timeout.
func (r RetryConfig) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutMS) * time.Millisecond
}

// Config holds the application configuration.
type Config struct {
	Labels  Labels     `yaml:"labels"`
	Sync    SyncConfig `yaml:"sync"`
	Retry   RetryConfig `yaml:"retry"`
	GitPath string     `yaml:"git_path"`
	GhPath  string     `yaml:"gh_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Labels: Labels{
			SyncMarker: "plansync",
			Pending:    "pending",
			InProgress: "in-progress",
			Completed:  "completed",
		},
		Sync: SyncConfig{
			ConflictStrategy: StrategyNewerWins,
			Concurrency:      5,
			BatchTransport:   BatchTransportGraphQL,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelayMS:   500,
			MaxDelayMS:    8000,
			CallTimeoutMS: 30000,
		},
		GitPath: "git",
		GhPath:  "gh",
	}
}

// Load reads configuration from the given path.
// If configPath is empty or doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Labels.SyncMarker == "" {
		c.Labels.SyncMarker = defaults.Labels.SyncMarker
	}
	if c.Labels.Pending == "" {
		c.Labels.Pending = defaults.Labels.Pending
	}
	if c.Labels.InProgress == "" {
		c.Labels.InProgress = defaults.Labels.InProgress
	}
	if c.Labels.Completed == "" {
		c.Labels.Completed = defaults.Labels.Completed
	}
	if c.Sync.ConflictStrategy == "" {
		c.Sync.ConflictStrategy = defaults.Sync.ConflictStrategy
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = defaults.Sync.Concurrency
	}
	if c.Sync.BatchTransport == "" {
		c.Sync.BatchTransport = defaults.Sync.BatchTransport
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMS == 0 {
		c.Retry.BaseDelayMS = defaults.Retry.BaseDelayMS
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = defaults.Retry.MaxDelayMS
	}
	if c.Retry.CallTimeoutMS == 0 {
		c.Retry.CallTimeoutMS = defaults.Retry.CallTimeoutMS
	}
	if c.GitPath == "" {
		c.GitPath = defaults.GitPath
	}
	if c.GhPath == "" {
		c.GhPath = defaults.GhPath
	}
}
