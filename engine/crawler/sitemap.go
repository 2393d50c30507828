package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type sitemapURLSet struct {
	XMLName xml.Name      `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name        `xml:"sitemapindex"`
	Sitemaps []sitemapEntry  `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// discoverSitemapSeeds fetches origin/sitemap.xml (following one level of
// sitemap-index nesting) and returns the listed page URLs, per selection
// mode "sitemap" (spec §4.2 step 1).
func discoverSitemapSeeds(ctx context.Context, origin string) ([]string, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	sitemapURL := base.ResolveReference(&url.URL{Path: "/sitemap.xml"})
	body, err := fetchBody(ctx, sitemapURL.String())
	if err != nil {
		return nil, err
	}

	if idx, ok := tryParseIndex(body); ok {
		var all []string
		for _, sm := range idx.Sitemaps {
			childBody, err := fetchBody(ctx, sm.Loc)
			if err != nil {
				continue
			}
			if set, ok := tryParseURLSet(childBody); ok {
				for _, u := range set.URLs {
					all = append(all, u.Loc)
				}
			}
		}
		return all, nil
	}

	if set, ok := tryParseURLSet(body); ok {
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			urls = append(urls, u.Loc)
		}
		return urls, nil
	}
	return nil, fmt.Errorf("sitemap at %s contained neither urlset nor sitemapindex", sitemapURL)
}

func tryParseIndex(body []byte) (sitemapIndex, bool) {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err != nil || len(idx.Sitemaps) == 0 {
		return idx, false
	}
	return idx, true
}

func tryParseURLSet(body []byte) (sitemapURLSet, bool) {
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil || len(set.URLs) == 0 {
		return set, false
	}
	return set, true
}

func fetchBody(ctx context.Context, target string) ([]byte, error) {
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
		return nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// expandPattern expands a glob-like page-selection pattern against the
// homepage's discovered link graph (spec §4.2 step 1, "pattern expansion
// against the homepage's link graph"). linkGraph holds every URL reachable
// from the homepage's <a href> set.
func expandPattern(pattern string, linkGraph []string) []string {
	var out []string
	for _, candidate := range linkGraph {
		if matchesPattern(pattern, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func matchesPattern(pattern, candidate string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "*") {
		prefix, suffix, ok := splitOnce(pattern, "*")
		if !ok {
			return pattern == candidate
		}
		return strings.HasPrefix(candidate, prefix) && strings.HasSuffix(candidate, suffix)
	}
	return strings.Contains(candidate, pattern)
}

func splitOnce(s, sep string) (string, string, bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
