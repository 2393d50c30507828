// Package verify implements C6: the four post-build probes (visual,
// functional, links, performance) plus the optional PageSpeed composite,
// and the hard-pass/soft-pass iteration rule. Visual diff uses a
// deterministic, pure-Go perceptual hash rather than a pixel-exact
// comparison (no cgo image-diff library exists in the example pack);
// Links reuses the same sony/gobreaker-wrapped transient-I/O policy the
// agent's advisor client uses, so a flaky link target doesn't cascade into
// a verifier failure storm (spec §4.6).
package verify

import (
	"context"
	"time"

	"siteforge/engine/models"
)

// Thresholds for the visual probe's Hamming-distance-over-64-bits score.
const (
	visualIdenticalMaxDistance  = 2
	visualAcceptableMaxDistance = 10
)

// PerformanceProbe scores one page's synthetic load performance 0-100.
// Modeled as a capability interface (parallel to crawler.BrowserDriver)
// since a real headless timing harness is the spec's declared-out-of-scope
// external collaborator; DefaultPerformanceProbe below is a deterministic
// stand-in driven by page weight.
type PerformanceProbe interface {
	Score(ctx context.Context, pageURL string, htmlBytes int, assetBytes int64) (int, error)
}

// PageSpeedClient fetches a remote composite audit score for a page.
type PageSpeedClient interface {
	Fetch(ctx context.Context, pageURL string) (int, error)
}

// FunctionalReplay replays one recorded interactive probe against the live
// edge and reports the behavior observed.
type FunctionalReplay func(ctx context.Context, el models.InteractiveElement) (observedBehavior string, err error)

// Options bundles the collaborators one Run needs.
type Options struct {
	EdgeBaseURL string
	Baseline    map[string][]byte // pageURL -> baseline screenshot
	Screenshots map[string][]byte // pageURL -> current screenshot
	Interactive map[string][]models.InteractiveElement
	Replay      FunctionalReplay
	Links       []string
	Performance PerformanceProbe
	PageSpeed   PageSpeedClient // nil disables the probe
	HTTPTimeout time.Duration
}

// Report is the full set of probe outcomes for one iteration.
type Report struct {
	Visual      []models.VisualResult
	Functional  []models.FunctionalResult
	Links       []models.LinkResult
	Performance []models.PerformanceResult
	PageSpeed   map[string]int
}
