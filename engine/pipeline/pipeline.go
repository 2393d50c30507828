package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"siteforge/engine/assets/image"
	"siteforge/engine/models"
)

// Optimize runs the full C5 phase sequence — css, fonts, js, images, html,
// write, headers — over a crawl inventory, emitting a phase event at each
// transition (spec §4.5). The css, fonts, js and images phases isolate
// per-asset failures internally; the html phase isolates per-page/per-step
// failures via htmlrewrite.Run; write and headers either complete or the
// build is failed.
func Optimize(ctx context.Context, inv *models.SiteInventory, o Options) ([]OptimizedPage, *Stats, error) {
	if err := os.MkdirAll(filepath.Join(o.WorkDir, "assets"), 0o755); err != nil {
		return nil, nil, fmt.Errorf("prepare work dir: %w", err)
	}

	flatSettings := flat(o.Settings)
	stats := newStats()

	cssStart := time.Now()
	publishPhase(o, "css", "started", nil)
	cssRename, cssContent, err := transformCSS(ctx, inv, o.WorkDir, cssSettings(flatSettings), stats)
	if err != nil {
		publishPhase(o, "css", "failed", map[string]interface{}{"error": err.Error()})
		return nil, stats, fmt.Errorf("css phase: %w", err)
	}
	stats.PhaseTimings["css"] = time.Since(cssStart)
	publishPhase(o, "css", "completed", nil)

	fontStart := time.Now()
	publishPhase(o, "fonts", "started", nil)
	fontPreloadCount := getInt(flatSettings, "html.fontPreloadCount", 3)
	fontPreloads, err := transformFonts(ctx, o.WorkDir, cssRename, cssContent, fontPreloadCount, stats)
	if err != nil {
		publishPhase(o, "fonts", "failed", map[string]interface{}{"error": err.Error()})
		return nil, stats, fmt.Errorf("fonts phase: %w", err)
	}
	stats.PhaseTimings["fonts"] = time.Since(fontStart)
	publishPhase(o, "fonts", "completed", nil)

	jsStart := time.Now()
	publishPhase(o, "js", "started", nil)
	jsRename, err := transformJS(ctx, inv, o.WorkDir, jsSettings(flatSettings), stats)
	if err != nil {
		publishPhase(o, "js", "failed", map[string]interface{}{"error": err.Error()})
		return nil, stats, fmt.Errorf("js phase: %w", err)
	}
	stats.PhaseTimings["js"] = time.Since(jsStart)
	stats.ScriptsRemoved += countRemoved(jsRename)
	publishPhase(o, "js", "completed", nil)

	imgStart := time.Now()
	publishPhase(o, "images", "started", nil)
	imgSettings := imageSettings(flatSettings)
	transformer := &image.Transformer{WebP: o.ImageWebP, AVIF: o.ImageAVIF}
	lcpCandidateCount := getInt(flatSettings, "image.lcpCandidateCount", 3)
	imgVariants, err := transformImages(ctx, inv, transformer, imgSettings, lcpCandidateCount, stats)
	if err != nil {
		publishPhase(o, "images", "failed", map[string]interface{}{"error": err.Error()})
		return nil, stats, fmt.Errorf("images phase: %w", err)
	}
	stats.PhaseTimings["images"] = time.Since(imgStart)
	publishPhase(o, "images", "completed", nil)

	htmlStart := time.Now()
	publishPhase(o, "html", "started", nil)
	hSettings := htmlSettings(flatSettings)
	var pages []OptimizedPage
	sortedPages := append([]models.CrawledPage(nil), inv.Pages...)
	sort.Slice(sortedPages, func(i, j int) bool { return sortedPages[i].URLPath < sortedPages[j].URLPath })
	for _, page := range sortedPages {
		before := int64(len(page.RawHTML))
		out, err := rewritePage(ctx, page, o.OriginURL, cssRename, jsRename, cssContent, imgVariants, fontPreloads, hSettings, o.Log)
		if err != nil {
			out = page.RawHTML // per-page failure isolation: ship the unrewritten page
		}
		pages = append(pages, OptimizedPage{URLPath: page.URLPath, HTML: out})
		stats.Pages = append(stats.Pages, PageSize{URLPath: page.URLPath, BeforeBytes: before, AfterBytes: int64(len(out))})
	}
	stats.PhaseTimings["html"] = time.Since(htmlStart)
	publishPhase(o, "html", "completed", nil)

	writeStart := time.Now()
	publishPhase(o, "write", "started", nil)
	if err := writeOutputTree(o.WorkDir, pages); err != nil {
		publishPhase(o, "write", "failed", map[string]interface{}{"error": err.Error()})
		return pages, stats, fmt.Errorf("write phase: %w", err)
	}
	stats.PhaseTimings["write"] = time.Since(writeStart)
	publishPhase(o, "write", "completed", nil)

	headersStart := time.Now()
	publishPhase(o, "headers", "started", nil)
	if err := writeHeaders(o.WorkDir, headerSettings(flatSettings)); err != nil {
		publishPhase(o, "headers", "failed", map[string]interface{}{"error": err.Error()})
		return pages, stats, fmt.Errorf("headers phase: %w", err)
	}
	stats.PhaseTimings["headers"] = time.Since(headersStart)
	publishPhase(o, "headers", "completed", nil)

	return pages, stats, nil
}

func countRemoved(rename models.RenameMap) int {
	n := 0
	for _, v := range rename {
		if v == models.RemovedSentinel {
			n++
		}
	}
	return n
}
