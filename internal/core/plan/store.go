package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoPlan is returned when no plan document can be found.
var ErrNoPlan = errors.New("no plan file found")

// DefaultPlanName is the plan file looked for in the working directory.
const DefaultPlanName = "task_plan.md"

// plansGlob matches plan documents under the .plansync directory.
const plansGlob = ".plansync/plans/**/*_plan.md"

// Store defines the interface for plan document persistence.
type Store interface {
	// LoadItems parses the plan document and returns its checkbox items.
	LoadItems(ctx context.Context, planPath string) ([]Item, error)

	// LoadState returns the persisted sync state, or nil if the plan
	// has never been synced.
	LoadState(ctx context.Context, planPath string) (*SyncState, error)

	// SaveState rewrites the plan document's front matter with the
	// given state. The write is atomic: a torn write never corrupts
	// the plan.
	SaveState(ctx context.Context, planPath string, state *SyncState) error

	// ApplyStatusUpdates batch-applies item status changes back into
	// the document's checkboxes.
	ApplyStatusUpdates(ctx context.Context, planPath string, updates []StatusUpdate) error
}

// FileStore reads and writes plan documents on the local filesystem.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

var _ Store = (*FileStore)(nil)

// LoadItems implements Store.
func (s *FileStore) LoadItems(_ context.Context, planPath string) ([]Item, error) {
	doc, err := s.load(planPath)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// LoadState implements Store.
func (s *FileStore) LoadState(_ context.Context, planPath string) (*SyncState, error) {
	doc, err := s.load(planPath)
	if err != nil {
		return nil, err
	}
	return doc.State, nil
}

// SaveState implements Store.
func (s *FileStore) SaveState(_ context.Context, planPath string, state *SyncState) error {
	doc, err := s.load(planPath)
	if err != nil {
		return err
	}

	content, err := doc.render(state)
	if err != nil {
		return err
	}
	return writeAtomic(planPath, content)
}

// ApplyStatusUpdates implements Store.
func (s *FileStore) ApplyStatusUpdates(_ context.Context, planPath string, updates []StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	doc, err := s.load(planPath)
	if err != nil {
		return err
	}

	doc.body = applyUpdates(doc.Items, doc.body, updates)

	content, err := doc.render(doc.State)
	if err != nil {
		return err
	}
	return writeAtomic(planPath, content)
}

// Load parses the full plan document.
func (s *FileStore) Load(_ context.Context, planPath string) (*Document, error) {
	return s.load(planPath)
}

func (s *FileStore) load(planPath string) (*Document, error) {
	data, err := os.ReadFile(planPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoPlan, planPath)
		}
		return nil, fmt.Errorf("read plan: %w", err)
	}

	doc, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", planPath, err)
	}
	return doc, nil
}

// writeAtomic writes content to path via a temp file and rename so a
// crash mid-write leaves the previous document intact.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".plansync-*")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close plan: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace plan: %w", err)
	}
	return nil
}

// Discover locates the plan document for a working directory: task_plan.md
// in the directory itself, otherwise the first *_plan.md under
// .plansync/plans (sorted for determinism).
func Discover(dir string) (string, error) {
	local := filepath.Join(dir, DefaultPlanName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, plansGlob))
	if err != nil {
		return "", fmt.Errorf("glob plans: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoPlan
	}

	sort.Strings(matches)
	return matches[0], nil
}
