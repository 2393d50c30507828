package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*PGStore)(nil)
)

func TestMemStoreSiteRoundTrips(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	require.NoError(t, s.PutSite(ctx, site))

	got, err := s.GetSite(ctx, "site1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", got.OriginURL)

	got.OriginURL = "mutated"
	reGot, err := s.GetSite(ctx, "site1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", reGot.OriginURL)
}

func TestMemStoreGetSiteMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetSite(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreActiveAgentRunForSite(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.PutAgentRun(ctx, &models.AgentRun{ID: "run1", SiteID: "site1", Status: models.AgentRunning}))
	require.NoError(t, s.PutAgentRun(ctx, &models.AgentRun{ID: "run2", SiteID: "site1", Status: models.AgentCompleted}))

	active, err := s.GetActiveAgentRunForSite(ctx, "site1")
	require.NoError(t, err)
	require.Equal(t, "run1", active.ID)
}

func TestMemStoreAppendAndListIterationResults(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.AppendIterationResult(ctx, "run1", models.IterationResult{Iteration: 0, Verdict: "incomplete"}))
	require.NoError(t, s.AppendIterationResult(ctx, "run1", models.IterationResult{Iteration: 1, Verdict: "pass"}))

	results, err := s.ListIterationResults(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "pass", results[1].Verdict)
}

func TestMemStoreListBuildsForSiteFiltersBySite(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.PutBuild(ctx, &models.Build{ID: "b1", SiteID: "site1"}))
	require.NoError(t, s.PutBuild(ctx, &models.Build{ID: "b2", SiteID: "site2"}))

	builds, err := s.ListBuildsForSite(ctx, "site1")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.Equal(t, "b1", builds[0].ID)
}
