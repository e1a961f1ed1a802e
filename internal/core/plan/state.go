package plan

import "time"

// IssueMapping is a durable link between one plan item and one remote issue.
// Field names match the on-disk front matter written by earlier versions.
type IssueMapping struct {
	Key      string    `yaml:"step" json:"step"`
	IssueID  int       `yaml:"issue" json:"issue"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	SyncedAt time.Time `yaml:"synced_at" json:"synced_at"`
}

// SyncState is the persisted reconciliation state for one plan.
type SyncState struct {
	Repo     string         `yaml:"repo" json:"repo"`
	Mappings []IssueMapping `yaml:"mappings" json:"mappings"`
	LastSync *time.Time     `yaml:"last_sync,omitempty" json:"last_sync,omitempty"`
}

// NewSyncState initializes empty sync state for a repository.
func NewSyncState(repo string) *SyncState {
	return &SyncState{Repo: repo}
}

// Mapping returns the mapping for the given item key, if any.
func (s *SyncState) Mapping(key string) (IssueMapping, bool) {
	if s == nil {
		return IssueMapping{}, false
	}
	for _, m := range s.Mappings {
		if m.Key == key {
			return m, true
		}
	}
	return IssueMapping{}, false
}

// Upsert adds or replaces the mapping for key, stamping it with now.
// At most one mapping exists per key.
func (s *SyncState) Upsert(key string, issueID int, url string, now time.Time) {
	mapping := IssueMapping{
		Key:      key,
		IssueID:  issueID,
		URL:      url,
		SyncedAt: now,
	}

	for i, m := range s.Mappings {
		if m.Key == key {
			s.Mappings[i] = mapping
			s.touch(now)
			return
		}
	}
	s.Mappings = append(s.Mappings, mapping)
	s.touch(now)
}

// Remove deletes the mapping for key, if present.
func (s *SyncState) Remove(key string) {
	for i, m := range s.Mappings {
		if m.Key == key {
			s.Mappings = append(s.Mappings[:i], s.Mappings[i+1:]...)
			return
		}
	}
}

func (s *SyncState) touch(now time.Time) {
	t := now
	s.LastSync = &t
}
