package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"siteforge/engine/assets/css"
	"siteforge/engine/assets/fonts"
	"siteforge/engine/assets/image"
	"siteforge/engine/assets/js"
	"siteforge/engine/htmlrewrite"
	"siteforge/engine/models"
)

// transformCSS runs the css transformer over every CSS asset (or combines
// them into one file when CombineStylesheets is set), bounded by an
// errgroup semaphore sized to GOMAXPROCS (spec §4.3 "Per-category bounded
// fan-out"). It returns a rename map keyed by source URL and updates stats.
func transformCSS(ctx context.Context, inv *models.SiteInventory, workDir string, s css.Settings, stats *Stats) (models.RenameMap, map[string]string, error) {
	rename := models.RenameMap{}
	content := map[string]string{}
	assetsDir := filepath.Join(workDir, "assets")

	keys := cssLikeKeys(inv, models.AssetCSS)
	if len(keys) == 0 {
		return rename, content, nil
	}

	if s.CombineStylesheets {
		var names, contents []string
		var total int64
		for _, key := range keys {
			a := inv.Assets[key]
			data, err := os.ReadFile(a.LocalPath)
			if err != nil {
				continue
			}
			total += int64(len(data))
			names = append(names, filepath.Base(a.LocalPath))
			contents = append(contents, string(data))
		}
		allHTML := concatPageHTML(inv)
		result := css.Combine(names, contents, allHTML, s)
		if err := os.WriteFile(filepath.Join(assetsDir, result.NewName), []byte(result.Content), 0o644); err != nil {
			return rename, content, err
		}
		for _, key := range keys {
			rename[key] = "assets/" + result.NewName
			content[key] = result.Content
		}
		stats.bump("css", total, int64(result.FinalLen))
		return rename, content, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, key := range keys {
		key := key
		a := inv.Assets[key]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			data, err := os.ReadFile(a.LocalPath)
			if err != nil {
				return nil // per-asset failure isolation: skip, leave unrenamed
			}
			allHTML := concatPageHTML(inv)
			result := css.Transform(filepath.Base(a.LocalPath), string(data), allHTML, s)
			if err := os.WriteFile(filepath.Join(assetsDir, result.NewName), []byte(result.Content), 0o644); err != nil {
				return nil
			}
			mu.Lock()
			rename[key] = "assets/" + result.NewName
			content[key] = result.Content
			stats.bump("css", int64(len(data)), int64(result.FinalLen))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return rename, content, err
	}
	return rename, content, nil
}

// transformJS runs the js transformer over every JS asset, bounded the same
// way as transformCSS.
func transformJS(ctx context.Context, inv *models.SiteInventory, workDir string, s js.Settings, stats *Stats) (models.RenameMap, error) {
	rename := models.RenameMap{}
	assetsDir := filepath.Join(workDir, "assets")
	keys := cssLikeKeys(inv, models.AssetJS)
	if len(keys) == 0 {
		return rename, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, key := range keys {
		key := key
		a := inv.Assets[key]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			data, err := os.ReadFile(a.LocalPath)
			if err != nil {
				return nil
			}
			name := filepath.Base(a.LocalPath)
			thisSettings := s
			if inv.JQueryUsed && contains(inv.JQueryDependents, key) {
				thisSettings.RemoveJquery = false
			}
			result := js.Transform(name, string(data), thisSettings)
			mu.Lock()
			defer mu.Unlock()
			if result.Remove {
				rename[key] = models.RemovedSentinel
				stats.bump("js", int64(len(data)), 0)
				return nil
			}
			if err := os.WriteFile(filepath.Join(assetsDir, result.NewName), []byte(result.Content), 0o644); err != nil {
				return nil
			}
			rename[key] = "assets/" + result.NewName
			stats.bump("js", int64(len(data)), int64(len(result.Content)))
			return nil
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return rename, err
	}
	return rename, nil
}

// transformFonts self-hosts every Google-Fonts stylesheet found among the
// already-transformed CSS assets (spec §4.3.4): it downloads the referenced
// woff2 files, rewrites the stylesheet's @font-face src urls to point at
// them, and rewrites both the in-memory content cache and the on-disk CSS
// file transformCSS already wrote so step k (critical CSS) and the shipped
// file agree. It returns the preload-worthy local paths (capped at
// maxPreload) across every self-hosted stylesheet, in discovery order.
func transformFonts(ctx context.Context, workDir string, cssRename models.RenameMap, content map[string]string, maxPreload int, stats *Stats) ([]string, error) {
	assetsDir := filepath.Join(workDir, "assets")
	fontsDir := filepath.Join(assetsDir, "fonts")

	var preloads []string
	for key, cssText := range content {
		if !strings.Contains(cssText, "fonts.gstatic.com") {
			continue
		}
		result, err := fonts.SelfHost(ctx, cssText, httpFetchBytes, "assets/fonts", maxPreload)
		if err != nil || len(result.Faces) == 0 {
			continue
		}
		if err := os.MkdirAll(fontsDir, 0o755); err != nil {
			return preloads, fmt.Errorf("prepare fonts dir: %w", err)
		}
		for _, face := range result.Faces {
			if err := os.WriteFile(filepath.Join(workDir, face.LocalPath), face.Data, 0o644); err != nil {
				continue
			}
			stats.bump("fonts", int64(len(face.Data)), int64(len(face.Data)))
		}
		content[key] = result.RewrittenCSS
		if renamed, ok := cssRename[key]; ok {
			_ = os.WriteFile(filepath.Join(workDir, renamed), []byte(result.RewrittenCSS), 0o644)
		}
		for _, face := range result.PreloadFaces {
			preloads = append(preloads, face.LocalPath)
		}
	}
	return preloads, nil
}

// httpFetchBytes is the fonts.Fetcher used in production, mirroring the
// crawler's own fetchAssetBytes (engine/crawler/crawler.go).
func httpFetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// transformImages runs the image transformer in place over every raster
// image asset. Images keep their original name (only CSS/JS get
// content-hash renames per the output tree layout), so no rename map entry
// is produced; callers rewrite <img> references using the unchanged path.
// It also returns, keyed by the same absolute-URL asset key, which
// modern-format sibling files (.webp/.avif) were actually written — the
// html phase uses this to decide which <source> candidates step f may
// reference, since a Transformer with no Encoder wired produces none.
func transformImages(ctx context.Context, inv *models.SiteInventory, t *image.Transformer, s image.Settings, lcpCandidateCount int, stats *Stats) (map[string]htmlrewrite.ImageVariant, error) {
	keys := cssLikeKeys(inv, models.AssetImage)
	lcp := map[string]bool{}
	for i, key := range keys {
		if i < lcpCandidateCount {
			lcp[key] = true
		}
	}

	variants := make(map[string]htmlrewrite.ImageVariant, len(keys))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, key := range keys {
		key := key
		a := inv.Assets[key]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			info, statErr := os.Stat(a.LocalPath)
			if statErr != nil {
				return nil
			}
			result, err := t.Transform(a.LocalPath, s, lcp[key])
			if err != nil {
				mu.Lock()
				stats.bump("images", info.Size(), info.Size())
				mu.Unlock()
				return nil
			}
			after := result.NewSize
			if after == 0 {
				after = info.Size()
			}
			var v htmlrewrite.ImageVariant
			for _, variant := range result.Variants {
				switch variant.Format {
				case "webp":
					v.WebP = true
				case "avif":
					v.AVIF = true
				}
			}
			mu.Lock()
			stats.bump("images", info.Size(), after)
			if v.WebP || v.AVIF {
				variants[key] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return variants, err
	}
	return variants, nil
}

func (s *Stats) bump(category string, before, after int64) {
	c := s.Categories[category]
	c.OriginalBytes += before
	c.OptimizedBytes += after
	s.Categories[category] = c
}

func cssLikeKeys(inv *models.SiteInventory, class models.AssetClass) []string {
	var keys []string
	for k, a := range inv.Assets {
		if a.Class == class {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func concatPageHTML(inv *models.SiteInventory) string {
	var total int
	for _, p := range inv.Pages {
		total += len(p.RawHTML)
	}
	out := make([]byte, 0, total)
	for _, p := range inv.Pages {
		out = append(out, p.RawHTML...)
	}
	return string(out)
}

