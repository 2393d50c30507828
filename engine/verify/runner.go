package verify

import (
	"context"
	"strings"
	"time"

	"siteforge/engine/crawler"
	"siteforge/engine/models"
)

// EdgeRunner is the concrete VerifyRunner an AgentRun drives: it re-renders
// every page the crawl recorded against the freshly deployed edge, using the
// same crawler.BrowserDriver capability C2 renders the baseline with, then
// hands the gathered screenshots/links/interactive elements to Run.
type EdgeRunner struct {
	Driver      crawler.BrowserDriver
	Performance PerformanceProbe
	PageSpeed   PageSpeedClient
	HTTPTimeout time.Duration
	IdleWait    time.Duration
	PostNavWait time.Duration
}

// Verify implements agent.VerifyRunner: build.EdgeURL plus the inventory
// captured during the crawl (stashed on build.EffectiveConfig's companion
// checkpoint by the agent controller) is enough to re-render every page and
// compare it against the baseline.
func (r *EdgeRunner) Verify(ctx context.Context, build *models.Build, inventory *models.SiteInventory) (*Report, error) {
	opts := Options{
		EdgeBaseURL: build.EdgeURL,
		Baseline:    make(map[string][]byte, len(inventory.Pages)),
		Screenshots: make(map[string][]byte, len(inventory.Pages)),
		Interactive: make(map[string][]models.InteractiveElement, len(inventory.Pages)),
		Links:       make([]string, 0, len(inventory.Assets)),
		Performance: r.Performance,
		PageSpeed:   r.PageSpeed,
		HTTPTimeout: r.HTTPTimeout,
	}
	if r.Driver != nil {
		opts.Replay = r.replay
	}

	for _, page := range inventory.Pages {
		opts.Baseline[page.URLPath] = page.Screenshot
		opts.Interactive[page.URLPath] = page.Interactive

		pageURL := strings.TrimRight(build.EdgeURL, "/") + page.URLPath
		if r.Driver != nil {
			rendered, err := r.Driver.Render(ctx, pageURL, r.IdleWait, r.PostNavWait)
			if err == nil {
				opts.Screenshots[page.URLPath] = rendered.Screenshot
			}
		}
		for _, assetURL := range page.AssetURLs {
			opts.Links = append(opts.Links, assetURL)
		}
	}

	return Run(ctx, opts)
}

func (r *EdgeRunner) replay(ctx context.Context, el models.InteractiveElement) (string, error) {
	probe := crawler.InteractiveProbe{Selector: el.Selector, Kind: el.Kind}
	result, err := r.Driver.ReplayProbe(ctx, probe)
	if err != nil {
		return "", err
	}
	return result.Behavior, nil
}
