package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"

	"siteforge/engine/models"
	"siteforge/engine/telemetry/logging"
	"siteforge/engine/telemetry/retry"
)

// Crawler drives seed discovery (colly, respecting robots.txt via its
// embedded temoto/robotstxt support) plus a BrowserDriver render pass per
// page, ported from the teacher's internal/crawler.Crawler.
type Crawler struct {
	policy    FetchPolicy
	driver    BrowserDriver
	collector *colly.Collector
	log       logging.Logger
}

// New builds a Crawler. driver is nil-able only for discovery-only tests;
// production callers always supply a real BrowserDriver.
func New(policy FetchPolicy, driver BrowserDriver, log logging.Logger) *Crawler {
	c := colly.NewCollector(colly.Debugger(&debug.LogDebugger{}))
	c.IgnoreRobotsTxt = false
	if policy.Timeout > 0 {
		c.SetRequestTimeout(policy.Timeout)
	}
	if policy.UserAgent != "" {
		c.UserAgent = policy.UserAgent
	}
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: policy.RequestDelay})
	return &Crawler{policy: policy, driver: driver, collector: c, log: log}
}

// Crawl executes the full C2 algorithm: seed discovery, bounded-concurrency
// render, dedupe by content hash, exclude-glob filtering, and asset
// download, producing a models.SiteInventory.
func (c *Crawler) Crawl(ctx context.Context, opts Options) (*models.SiteInventory, error) {
	base, err := parseOrigin(opts.OriginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}

	seeds, err := c.seeds(ctx, opts, base)
	if err != nil {
		return nil, fmt.Errorf("seed discovery: %w", err)
	}
	seeds = applyExcludes(seeds, opts.ExcludeGlobs)

	maxConc := opts.MaxConcurrentPages
	if maxConc <= 0 {
		maxConc = 1
	}
	sem := make(chan struct{}, maxConc)

	type pageSlot struct {
		order int
		page  models.CrawledPage
		ok    bool
	}
	results := make([]pageSlot, len(seeds))
	var wg sync.WaitGroup
	var seenHash sync.Map // content hash -> true, guards dedupe across goroutines
	var pageCount int32
	var mu sync.Mutex // guards pageCount

	for i, seedURL := range seeds {
		mu.Lock()
		reachedCap := opts.MaxPages > 0 && int(pageCount) >= opts.MaxPages
		mu.Unlock()
		if reachedCap {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			page, ok := c.renderPage(ctx, pageURL, opts)
			if !ok {
				return
			}
			if _, dup := seenHash.LoadOrStore(page.ContentHash, true); dup {
				return
			}
			mu.Lock()
			if opts.MaxPages > 0 && int(pageCount) >= opts.MaxPages {
				mu.Unlock()
				return
			}
			pageCount++
			mu.Unlock()
			results[idx] = pageSlot{order: idx, page: page, ok: true}
		}(i, seedURL)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].order < results[j].order })
	pages := make([]models.CrawledPage, 0, len(results))
	assetRefs := make(map[string]bool)
	for _, r := range results {
		if !r.ok {
			continue
		}
		pages = append(pages, r.page)
		for _, a := range r.page.AssetURLs {
			assetRefs[a] = true
		}
	}

	assets, jqUsed, jqDeps := c.downloadAssets(ctx, assetRefs, opts.WorkDir)

	inv := &models.SiteInventory{
		Pages:            pages,
		Assets:           assets,
		JQueryUsed:       jqUsed,
		JQueryDependents: jqDeps,
		CrawledAt:        time.Now(),
	}
	return inv, nil
}

func (c *Crawler) renderPage(ctx context.Context, pageURL string, opts Options) (models.CrawledPage, bool) {
	var rendered RenderResult
	var err error
	if c.driver != nil {
		rendered, err = c.driver.Render(ctx, pageURL, opts.NetworkIdleTimeout, opts.CrawlWaitMs)
	} else {
		rendered.HTML, err = c.fetchRaw(ctx, pageURL)
	}
	if err != nil {
		if c.log != nil {
			c.log.WarnCtx(ctx, "page crawl failed, dropping page", "url", pageURL, "error", err.Error())
		}
		return models.CrawledPage{}, false
	}

	base, _ := url.Parse(pageURL)
	assets, links := discoverAssetsAndLinks(rendered.HTML, base)
	_ = links // link graph feeding "pattern" selection happens at seed stage

	sum := sha256.Sum256([]byte(rendered.HTML))
	hash := hex.EncodeToString(sum[:])

	page := models.CrawledPage{
		URLPath:     base.Path,
		RawHTML:     rendered.HTML,
		Title:       extractTitleFromHTML(rendered.HTML),
		ContentHash: hash,
		AssetURLs:   assets.Ordered,
		Screenshot:  rendered.Screenshot,
		CoverageJS:  rendered.Coverage.JSFileNames,
		CrawledAt:   time.Now(),
	}
	if len(rendered.Coverage.CSSRuleIDs) > 0 {
		page.CoverageCSS = map[string][]string{"*": rendered.Coverage.CSSRuleIDs}
	}

	if c.driver != nil {
		for _, probe := range ProbeCatalog() {
			el, err := c.driver.ReplayProbe(ctx, probe)
			if err != nil {
				continue
			}
			page.Interactive = append(page.Interactive, el)
		}
	}
	return page, true
}

// fetchRaw fetches target through a per-call clone of the collector, so
// robots.txt rules (enforced by colly's embedded temoto/robotstxt checker)
// and rate limiting apply to every discovery fetch while remaining safe to
// call from many goroutines at once.
func (c *Crawler) fetchRaw(ctx context.Context, target string) (string, error) {
	clone := c.collector.Clone()
	var body string
	var fetchErr error
	clone.OnResponse(func(r *colly.Response) { body = string(r.Body) })
	clone.OnError(func(r *colly.Response, err error) { fetchErr = err })
	if err := clone.Visit(target); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return body, nil
}

func (c *Crawler) seeds(ctx context.Context, opts Options, base *url.URL) ([]string, error) {
	switch opts.Selection {
	case SelectionURLList:
		return append([]string{}, opts.CustomURLs...), nil
	case SelectionPattern:
		homepage, err := c.fetchRaw(ctx, opts.OriginURL)
		if err != nil {
			return nil, err
		}
		_, links := discoverAssetsAndLinks(homepage, base)
		if len(opts.CustomURLs) == 0 {
			return links, nil
		}
		var out []string
		for _, pattern := range opts.CustomURLs {
			out = append(out, expandPattern(pattern, links)...)
		}
		return out, nil
	default: // SelectionSitemap
		seeds, err := discoverSitemapSeeds(ctx, opts.OriginURL)
		if err != nil || len(seeds) == 0 {
			return []string{opts.OriginURL}, nil
		}
		return seeds, nil
	}
}

func applyExcludes(urls []string, globs []string) []string {
	if len(globs) == 0 {
		return urls
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		excluded := false
		parsed, err := url.Parse(u)
		p := u
		if err == nil {
			p = parsed.Path
		}
		for _, g := range globs {
			if ok, _ := path.Match(g, p); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, u)
		}
	}
	return out
}

// downloadAssets fetches every referenced asset to workDir/assets/,
// recording size+hash. Failures are logged and recorded as pass-through
// with originalBytes=0, per spec §4.2 failure semantics.
func (c *Crawler) downloadAssets(ctx context.Context, refs map[string]bool, workDir string) (map[string]models.Asset, bool, []string) {
	assets := make(map[string]models.Asset, len(refs))
	jqUsed := false
	var jqDeps []string

	assetDir := filepath.Join(workDir, "assets")
	_ = os.MkdirAll(assetDir, 0o755)

	policy := retry.DefaultPolicy()
	for ref := range refs {
		if strings.Contains(strings.ToLower(ref), "jquery") {
			jqUsed = true
			jqDeps = append(jqDeps, ref)
		}

		var body []byte
		err := retry.Do(ctx, policy, func(int) error {
			b, ferr := c.fetchAssetBytes(ctx, ref)
			if ferr != nil {
				return ferr
			}
			body = b
			return nil
		})
		if err != nil {
			if c.log != nil {
				c.log.WarnCtx(ctx, "asset download failed, pass-through", "url", ref, "error", err.Error())
			}
			assets[ref] = models.Asset{SourceURL: ref, OriginalSize: 0, Class: classifyAsset(ref), PassThrough: true}
			continue
		}

		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])
		localPath := filepath.Join(assetDir, hash+filepath.Ext(ref))
		_ = os.WriteFile(localPath, body, 0o644)

		assets[ref] = models.Asset{
			SourceURL:    ref,
			LocalPath:    localPath,
			Class:        classifyAsset(ref),
			OriginalSize: int64(len(body)),
			Hash:         hash,
		}
	}
	return assets, jqUsed, jqDeps
}

func (c *Crawler) fetchAssetBytes(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
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

func classifyAsset(ref string) models.AssetClass {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(ref, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg", ".ico":
		return models.AssetImage
	case ".css":
		return models.AssetCSS
	case ".js", ".mjs":
		return models.AssetJS
	case ".woff", ".woff2", ".ttf", ".otf", ".eot":
		return models.AssetFont
	default:
		return models.AssetOther
	}
}

func extractTitleFromHTML(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}
