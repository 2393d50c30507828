package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siteforge/engine/htmlrewrite"
	"siteforge/engine/models"
	"siteforge/engine/telemetry/logging"
)

// rewritePage runs the full C4 15-step pass over one crawled page, first
// translating the pipeline's absolute-URL-keyed rename maps into the
// literal-href-keyed maps each step expects (a page's raw HTML references
// assets by whatever relative or absolute form the original author used).
func rewritePage(goCtx context.Context, page models.CrawledPage, originURL string, cssRename, jsRename models.RenameMap, cssContent map[string]string, imgVariants map[string]htmlrewrite.ImageVariant, fontPreloads []string, settings htmlrewrite.Settings, log logging.Logger) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.RawHTML))
	if err != nil {
		return page.RawHTML, err
	}

	// Stub-in the self-hosted font files as bare <link> tags so steps h
	// (font-display stamping) and m (preload hint promotion) — both of
	// which look for link[href*='.woff2'] — have something real to find.
	if head := doc.Find("head").First(); head.Length() > 0 {
		for _, relPath := range fontPreloads {
			head.AppendHtml(fmt.Sprintf(`<link href="%s">`, relPath))
		}
	}

	base := pageBase(originURL, page.URLPath)
	ctx := &htmlrewrite.Context{
		Doc:           doc,
		Page:          &page,
		Settings:      settings,
		RenameCSS:     perPageRenameMap(doc, "link[rel='stylesheet'][href]", "href", base, cssRename),
		RenameJS:      perPageRenameMap(doc, "script[src]", "src", base, jsRename),
		RenameImage:   models.RenameMap{}, // images keep their original name; no rename needed
		CSSContent:    rekeyCSSContent(cssContent, cssRename),
		ImageVariants: perPageImageVariants(doc, base, imgVariants),
	}

	htmlrewrite.Run(goCtx, ctx, log)

	out, err := ctx.Doc.Html()
	if err != nil {
		return page.RawHTML, err
	}
	return out, nil
}

func pageBase(originURL, urlPath string) *url.URL {
	b, err := url.Parse(strings.TrimSuffix(originURL, "/") + urlPath)
	if err != nil {
		b, _ = url.Parse(originURL)
	}
	return b
}

// perPageRenameMap walks the selection's attr for every matching element,
// resolves it against base, and — if the resolved absolute URL is present
// in globalRename — records an entry keyed by the literal attribute value
// found in this page's markup.
func perPageRenameMap(doc *goquery.Document, selector, attr string, base *url.URL, globalRename models.RenameMap) models.RenameMap {
	out := models.RenameMap{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr(attr)
		if !ok || raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := u
		if !u.IsAbs() {
			abs = base.ResolveReference(u)
		}
		if newPath, found := globalRename[abs.String()]; found {
			out[raw] = newPath
		}
	})
	return out
}

// perPageImageVariants resolves each img[src] on the page against the
// crawl's absolute-URL-keyed variant map, producing a map keyed by the
// literal src attribute value this page actually uses — the same
// literal-vs-absolute translation perPageRenameMap does for CSS/JS.
func perPageImageVariants(doc *goquery.Document, base *url.URL, globalVariants map[string]htmlrewrite.ImageVariant) map[string]htmlrewrite.ImageVariant {
	out := make(map[string]htmlrewrite.ImageVariant)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("src")
		if !ok || raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := u
		if !u.IsAbs() {
			abs = base.ResolveReference(u)
		}
		if v, found := globalVariants[abs.String()]; found {
			out[raw] = v
		}
	})
	return out
}

// rekeyCSSContent maps the absolute-URL-keyed content cache into the
// post-rename-path-keyed form step k (critical CSS) looks up against the
// rewritten <link href> values.
func rekeyCSSContent(contentByURL map[string]string, cssRename models.RenameMap) map[string]string {
	out := make(map[string]string, len(contentByURL))
	for absURL, content := range contentByURL {
		if newPath, ok := cssRename[absURL]; ok {
			out[newPath] = content
		}
	}
	return out
}
