// Package pipeline implements C5: the phase orchestrator that turns a
// crawl inventory into an optimized output tree. Phases run
// css->fonts->js->images->html->write->headers, emitting a phase event at each
// transition over the event bus (C8), grounded on the teacher's
// engine/internal/pipeline worker-stage shape re-purposed from
// discovery/extraction/processing/output to the asset-category sequence
// this spec calls for.
package pipeline

import (
	"time"

	"siteforge/engine/assets/image"
	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/telemetry/logging"
)

// Options bundles everything a single Optimize call needs.
type Options struct {
	SiteID    string
	BuildID   string
	OriginURL string
	WorkDir   string // contains assets/ (downloaded originals) and will receive output/
	Settings  models.Settings
	Bus       events.Bus
	Log       logging.Logger

	// ImageWebP/ImageAVIF are optional codec capabilities; when nil the
	// corresponding modern-format variant is simply not produced (see
	// image.Encoder doc).
	ImageWebP image.Encoder
	ImageAVIF image.Encoder
}

// CategoryStats tracks byte totals for one asset category.
type CategoryStats struct {
	OriginalBytes  int64 `json:"original_bytes"`
	OptimizedBytes int64 `json:"optimized_bytes"`
}

// PageSize is the before/after byte count for one page's rewritten HTML.
type PageSize struct {
	URLPath      string `json:"url_path"`
	BeforeBytes  int64  `json:"before_bytes"`
	AfterBytes   int64  `json:"after_bytes"`
}

// Stats is the value Optimize returns alongside the optimized pages.
type Stats struct {
	Categories     map[string]CategoryStats `json:"categories"` // css|js|images|fonts
	FacadesApplied int                      `json:"facades_applied"`
	ScriptsRemoved int                      `json:"scripts_removed"`
	Pages          []PageSize               `json:"pages"`
	PhaseTimings   map[string]time.Duration `json:"phase_timings"`
}

func newStats() *Stats {
	return &Stats{
		Categories:   map[string]CategoryStats{"css": {}, "js": {}, "images": {}, "fonts": {}},
		PhaseTimings: map[string]time.Duration{},
	}
}

// OptimizedPage is one page's final, rewritten HTML plus its source record.
type OptimizedPage struct {
	URLPath string
	HTML    string
}

func publishPhase(o Options, phase, status string, fields map[string]interface{}) {
	if o.Bus == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["phase"] = phase
	fields["status"] = status
	_ = o.Bus.Publish(events.Event{
		Time:     time.Now(),
		Category: events.CategoryPipeline,
		Type:     "phase_transition",
		SiteID:   o.SiteID,
		BuildID:  o.BuildID,
		Fields:   fields,
	})
}
