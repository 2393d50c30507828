package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func TestRegistryRejectsSecondActiveRunForSameSite(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Start("site1", "run1"))
	err := reg.Start("site1", "run2")
	require.ErrorIs(t, err, models.ErrSiteBusy)
}

func TestRegistryAllowsNewRunAfterFinish(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Start("site1", "run1"))
	reg.Finish("site1", "run1")
	require.NoError(t, reg.Start("site1", "run2"))
}

func TestRegistryAllowsDifferentSitesConcurrently(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Start("site1", "run1"))
	require.NoError(t, reg.Start("site2", "run2"))
	runID, ok := reg.ActiveRun("site2")
	require.True(t, ok)
	require.Equal(t, "run2", runID)
}
