// Package store treats the relational database as an opaque
// checkpoint+history key/value backing (spec.md §1, SPEC_FULL §3): callers
// never issue ad-hoc queries against Site/Build/AgentRun internals, they
// round-trip whole records through this interface. Two implementations
// satisfy it: an in-memory map (default, and what package tests across the
// engine use) and a github.com/jackc/pgx/v5-backed one for a real
// deployment.
package store

import (
	"context"
	"errors"

	"siteforge/engine/models"
)

// ErrNotFound is returned by any Get when the key is absent.
var ErrNotFound = errors.New("store: not found")

// Store is the full persistence surface the agent loop, the build queue,
// and the HTTP control plane depend on.
type Store interface {
	PutSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
	DeleteSite(ctx context.Context, id string) error

	PutBuild(ctx context.Context, build *models.Build) error
	GetBuild(ctx context.Context, id string) (*models.Build, error)
	ListBuildsForSite(ctx context.Context, siteID string) ([]*models.Build, error)

	PutAgentRun(ctx context.Context, run *models.AgentRun) error
	GetAgentRun(ctx context.Context, id string) (*models.AgentRun, error)
	GetActiveAgentRunForSite(ctx context.Context, siteID string) (*models.AgentRun, error)

	AppendIterationResult(ctx context.Context, runID string, result models.IterationResult) error
	ListIterationResults(ctx context.Context, runID string) ([]models.IterationResult, error)

	Close() error
}
