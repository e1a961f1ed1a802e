package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncState_Upsert(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	state := NewSyncState("octo/rocket")

	state.Upsert("Write tests", 7, "https://example.com/7", now)

	require.Len(t, state.Mappings, 1)
	assert.Equal(t, IssueMapping{
		Key:      "Write tests",
		IssueID:  7,
		URL:      "https://example.com/7",
		SyncedAt: now,
	}, state.Mappings[0])
	require.NotNil(t, state.LastSync)
	assert.Equal(t, now, *state.LastSync)

	// Upserting the same key replaces, never duplicates.
	later := now.Add(time.Hour)
	state.Upsert("Write tests", 9, "", later)

	require.Len(t, state.Mappings, 1)
	assert.Equal(t, 9, state.Mappings[0].IssueID)
	assert.Equal(t, later, state.Mappings[0].SyncedAt)
}

func TestSyncState_Mapping(t *testing.T) {
	now := time.Now()
	state := NewSyncState("octo/rocket")
	state.Upsert("a", 1, "", now)
	state.Upsert("b", 2, "", now)

	m, ok := state.Mapping("b")
	assert.True(t, ok)
	assert.Equal(t, 2, m.IssueID)

	_, ok = state.Mapping("c")
	assert.False(t, ok)

	// nil receiver is a valid "never synced" lookup
	var nilState *SyncState
	_, ok = nilState.Mapping("a")
	assert.False(t, ok)
}

func TestSyncState_Remove(t *testing.T) {
	now := time.Now()
	state := NewSyncState("octo/rocket")
	state.Upsert("a", 1, "", now)
	state.Upsert("b", 2, "", now)

	state.Remove("a")
	require.Len(t, state.Mappings, 1)
	assert.Equal(t, "b", state.Mappings[0].Key)

	state.Remove("not-there")
	assert.Len(t, state.Mappings, 1)
}
