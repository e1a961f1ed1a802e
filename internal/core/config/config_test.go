package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "plansync", cfg.Labels.SyncMarker)
	assert.Equal(t, StrategyNewerWins, cfg.Sync.ConflictStrategy)
	assert.Equal(t, 5, cfg.Sync.Concurrency)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Retry.CallTimeout())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Labels, cfg.Labels)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
labels:
  sync_marker: my-sync
sync:
  conflict_strategy: local_wins
retry:
  base_delay_ms: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "my-sync", cfg.Labels.SyncMarker)
	assert.Equal(t, "pending", cfg.Labels.Pending)
	assert.Equal(t, StrategyLocalWins, cfg.Sync.ConflictStrategy)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay())
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxDelay())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sync:
  conflict_strategy: coin_flip
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Sync.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *Config) { c.Retry.MaxDelayMS = 10 },
			wantErr: "max_delay_ms",
		},
		{
			name:    "label with comma",
			mutate:  func(c *Config) { c.Labels.Pending = "a,b" },
			wantErr: "labels.pending",
		},
		{
			name:    "empty marker label",
			mutate:  func(c *Config) { c.Labels.SyncMarker = " " },
			wantErr: "labels.sync_marker",
		},
		{
			name:    "unknown batch transport",
			mutate:  func(c *Config) { c.Sync.BatchTransport = "soap" },
			wantErr: "sync.batch_transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRepoSlug(t *testing.T) {
	tests := []struct {
		slug string
		ok   bool
	}{
		{"owner/repo", true},
		{"octo-org/my.repo", true},
		{"a/b", true},
		{"", false},
		{"  ", false},
		{"norepo", false},
		{"owner/repo/extra", false},
		{"/repo", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			err := RepoSlug(tt.slug)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
