// Package agent implements C7: the iteration controller that drives a Site
// through analyzing -> planning -> building -> verifying -> reviewing ->
// (building|complete|failed), bounded by maxIterations, checkpointing after
// every phase so a crashed process can resume a run rather than restart it
// (spec.md §4.7).
package agent

import (
	"context"
	"time"

	"siteforge/engine/crawler"
	"siteforge/engine/models"
)

// SettingsPatch is the sparse tree an advisor call proposes; it is merged
// onto current settings with settings.Merge, never replaces it wholesale.
type SettingsPatch = models.Settings

// ReviewVerdict is the external reviewer's judgment on one completed
// iteration.
type ReviewVerdict struct {
	ShouldRebuild  bool
	SettingChanges SettingsPatch
	OverallVerdict string // pass|incomplete|failed
}

// AdvisorClient is the opaque external planner/reviewer the spec declares
// out of scope (spec.md §1); concretized here against
// github.com/anthropics/anthropic-sdk-go (SPEC_FULL §4.7).
type AdvisorClient interface {
	Plan(ctx context.Context, inventory *models.SiteInventory, audits map[string]int) (SettingsPatch, error)
	Review(ctx context.Context, iteration models.IterationResult, history []models.IterationResult) (ReviewVerdict, error)
}

// Crawler is the C2 capability this controller calls on iteration 1.
type Crawler interface {
	Crawl(ctx context.Context, opts crawler.Options) (*models.SiteInventory, error)
}

// BuildDispatcher is the C9 queue capability the controller enqueues a
// Build onto and awaits.
type BuildDispatcher interface {
	Enqueue(ctx context.Context, siteID string, settings models.Settings) (buildID string, err error)
	Await(ctx context.Context, buildID string, timeout time.Duration) (*models.Build, error)
}

// PageSpeedClient fetches the optional remote composite audit, reused from
// the verifier's PageSpeedClient shape so both components share one
// implementation.
type PageSpeedClient interface {
	Fetch(ctx context.Context, pageURL string) (int, error)
}
