package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func TestCheckpointStoreSaveAndLoadRoundTrips(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	cp := &models.AgentCheckpoint{
		LastCompletedPhase: models.PhasePlanning,
		CurrentSettings:    models.Settings{"css": models.Settings{"purge": true}},
	}
	require.NoError(t, store.Save("run1", cp))

	loaded, ok, err := store.Load("run1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.PhasePlanning, loaded.LastCompletedPhase)
}

func TestCheckpointStoreSpillsColdestEntryToDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCheckpointStore(CheckpointConfig{CacheCapacity: 1, SpillDirectory: dir})
	require.NoError(t, err)

	require.NoError(t, store.Save("run1", &models.AgentCheckpoint{LastCompletedPhase: models.PhaseAnalyzing}))
	require.NoError(t, store.Save("run2", &models.AgentCheckpoint{LastCompletedPhase: models.PhaseBuilding}))

	loaded, ok, err := store.Load("run1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.PhaseAnalyzing, loaded.LastCompletedPhase)
}

func TestCheckpointStoreDropRemovesEntry(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)
	require.NoError(t, store.Save("run1", &models.AgentCheckpoint{}))
	store.Drop("run1")

	_, ok, err := store.Load("run1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckpointStoreLoadMissingReturnsFalse(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)
	_, ok, err := store.Load("unknown")
	require.NoError(t, err)
	require.False(t, ok)
}
