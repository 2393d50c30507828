package htmlrewrite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepResourceHints preloads the LCP image, preloads up to FontPreloadCount
// self-hosted fonts, preconnects the first MaxPreconnects external origins
// referenced on the page (in document order), dns-prefetches the rest, and
// removes any preconnect hint left over from bloat_removal whose origin is
// no longer referenced (spec §4.4 step m).
func stepResourceHints(ctx *Context) error {
	head := ctx.Doc.Find("head").First()
	if head.Length() == 0 {
		return nil
	}

	origins := collectExternalOrigins(ctx.Doc)
	ctx.ExternalOrigins = origins

	maxPreconnects := ctx.Settings.MaxPreconnects
	if maxPreconnects <= 0 {
		maxPreconnects = 4
	}

	head.Find("link[rel='preconnect']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !containsOrigin(origins, href) {
			s.Remove()
		}
	})

	for i, origin := range origins {
		if i < maxPreconnects {
			head.AppendHtml(fmt.Sprintf(`<link rel="preconnect" href="%s" crossorigin>`, origin))
		} else {
			head.AppendHtml(fmt.Sprintf(`<link rel="dns-prefetch" href="%s">`, origin))
		}
	}

	lcpImg := ctx.Doc.Find("img[fetchpriority='high']").First()
	if lcpImg.Length() > 0 {
		if src, ok := lcpImg.Attr("src"); ok {
			head.AppendHtml(fmt.Sprintf(`<link rel="preload" as="image" href="%s">`, src))
		}
	}

	preloadCount := ctx.Settings.FontPreloadCount
	if preloadCount <= 0 {
		preloadCount = 1
	}
	n := 0
	ctx.Doc.Find("link[href*='.woff2']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if n >= preloadCount {
			s.Remove()
			return
		}
		s.ReplaceWithHtml(preloadFontHint(href))
		n++
	})
	return nil
}

func collectExternalOrigins(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var origins []string
	add := func(raw string) {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return
		}
		origin := u.Scheme + "://" + u.Host
		if !seen[origin] {
			seen[origin] = true
			origins = append(origins, origin)
		}
	}
	doc.Find("script[src], link[href], iframe[src], img[src]").Each(func(_ int, s *goquery.Selection) {
		if rel, _ := s.Attr("rel"); rel == "preconnect" || rel == "dns-prefetch" {
			return // a hint is not itself a reference to its origin
		}
		for _, attr := range []string{"src", "href"} {
			if v, ok := s.Attr(attr); ok && strings.Contains(v, "://") {
				add(v)
			}
		}
	})
	return origins
}

func containsOrigin(origins []string, href string) bool {
	for _, o := range origins {
		if strings.HasPrefix(href, o) {
			return true
		}
	}
	return false
}
