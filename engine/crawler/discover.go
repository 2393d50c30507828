package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoveredAssets holds the ordered, deduped asset URLs referenced by one
// page's DOM (img/link/script/source, per spec §4.2 step 2).
type discoveredAssets struct {
	Ordered []string
	seen    map[string]bool
}

func newDiscoveredAssets() *discoveredAssets {
	return &discoveredAssets{seen: make(map[string]bool)}
}

func (d *discoveredAssets) add(raw string, base *url.URL) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	abs := u.String()
	if d.seen[abs] {
		return
	}
	d.seen[abs] = true
	d.Ordered = append(d.Ordered, abs)
}

// discoverAssetsAndLinks walks the page DOM once, collecting referenced
// asset URLs (img/link/script/source) and outbound <a href> links, ported
// from the teacher's CollyFetcher.Discover / Crawler.processLink.
func discoverAssetsAndLinks(html string, base *url.URL) (assets *discoveredAssets, links []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	assets = newDiscoveredAssets()
	if err != nil {
		return assets, nil
	}

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			assets.add(v, base)
		}
		if v, ok := s.Attr("srcset"); ok {
			for _, candidate := range strings.Split(v, ",") {
				fields := strings.Fields(strings.TrimSpace(candidate))
				if len(fields) > 0 {
					assets.add(fields[0], base)
				}
			}
		}
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if rel == "stylesheet" || rel == "preload" || rel == "icon" || strings.Contains(rel, "icon") {
			if v, ok := s.Attr("href"); ok {
				assets.add(v, base)
			}
		}
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			assets.add(v, base)
		}
	})
	doc.Find("source[src]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			assets.add(v, base)
		}
	})
	doc.Find("source[srcset]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("srcset"); ok {
			for _, candidate := range strings.Split(v, ",") {
				fields := strings.Fields(strings.TrimSpace(candidate))
				if len(fields) > 0 {
					assets.add(fields[0], base)
				}
			}
		}
	})

	var linkSet []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "#") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() {
			u = base.ResolveReference(u)
		}
		u.Fragment = ""
		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		linkSet = append(linkSet, abs)
	})

	return assets, linkSet
}
