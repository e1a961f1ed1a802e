package commands

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/atlasops/plansync/internal/sync"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Service orchestrates sync runs against the remote tracker
	Service *sync.Service

	// Store reads and writes plan documents
	Store *plan.FileStore

	// Remote is the GitHub client, used directly for interactive
	// conflict resolution which acts outside a service run
	Remote sync.Remote
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "plansync", "config.yaml")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/plansync/plansync.log
// On Linux: $XDG_STATE_HOME/plansync/plansync.log (defaults to ~/.local/state/plansync/plansync.log)
func DefaultLogFile() string {
	// Check XDG_STATE_HOME first (works on both macOS and Linux)
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "plansync", "plansync.log")
	}

	home, _ := os.UserHomeDir()

	// On macOS, use ~/Library/Logs
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "plansync", "plansync.log")
	}

	// On Linux, use ~/.local/state
	return filepath.Join(home, ".local", "state", "plansync", "plansync.log")
}

// resolveOptions builds run options from the shared --plan/--repo/--dry-run
// flag values. When no plan is given it discovers one from the working
// directory, and it loads the document to pick up the project name for
// issue bodies.
func (f *Flags) resolveOptions(ctx context.Context, planPath, repo string, dryRun bool) (sync.Options, error) {
	dir, err := os.Getwd()
	if err != nil {
		return sync.Options{}, err
	}

	if planPath == "" {
		planPath, err = plan.Discover(dir)
		if err != nil {
			return sync.Options{}, err
		}
	}

	opts := sync.Options{
		PlanPath: planPath,
		Dir:      dir,
		Repo:     repo,
		DryRun:   dryRun,
	}

	if doc, err := f.Store.Load(ctx, planPath); err == nil {
		opts.Project = doc.Project
	}

	return opts, nil
}
