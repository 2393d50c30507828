package htmlrewrite

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var criticalRuleRE = regexp.MustCompile(`(?s)([^{}]+)\{([^{}]*)\}`)

// stepCriticalCSS inlines the rules covered during the crawl's rendered
// pass (spec §4.2 coverage capture) as a blocking <style> block, then
// rewrites the full stylesheet link to load non-blocking via
// rel=preload/onload with a <noscript> fallback (spec §4.4 step k).
func stepCriticalCSS(ctx *Context) error {
	if !ctx.Settings.CriticalCSS || ctx.Page == nil || len(ctx.Page.CoverageCSS) == 0 {
		return nil
	}
	head := ctx.Doc.Find("head").First()
	if head.Length() == 0 {
		return nil
	}

	var critical strings.Builder
	ctx.Doc.Find("link[rel='stylesheet'][href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		used, ok := coverageFor(ctx.Page.CoverageCSS, href)
		if !ok || len(used) == 0 {
			return
		}
		content := ctx.CSSContent[href]
		if content == "" {
			return
		}
		critical.WriteString(extractCriticalRules(content, used))

		s.SetAttr("rel", "preload")
		s.SetAttr("as", "style")
		s.SetAttr("onload", "this.onload=null;this.rel='stylesheet'")
		noscript := `<noscript><link rel="stylesheet" href="` + href + `"></noscript>`
		s.AfterHtml(noscript)
	})

	if critical.Len() == 0 {
		return nil
	}
	head.AppendHtml(`<style data-critical="true">` + critical.String() + `</style>`)
	return nil
}

// coverageFor looks up the hit-selector list for a stylesheet href,
// tolerating the original (pre-rename) key still present in CoverageCSS.
func coverageFor(coverage map[string][]string, renamedHref string) ([]string, bool) {
	if v, ok := coverage[renamedHref]; ok {
		return v, true
	}
	base := renamedHref
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	for k, v := range coverage {
		if strings.HasSuffix(k, base) {
			return v, true
		}
	}
	return nil, false
}

func extractCriticalRules(css string, usedSelectors []string) string {
	used := make(map[string]bool, len(usedSelectors))
	for _, s := range usedSelectors {
		used[strings.TrimSpace(s)] = true
	}
	var out strings.Builder
	for _, m := range criticalRuleRE.FindAllStringSubmatch(css, -1) {
		selectorList := m[1]
		if strings.HasPrefix(strings.TrimSpace(selectorList), "@") {
			continue
		}
		for _, sel := range strings.Split(selectorList, ",") {
			if used[strings.TrimSpace(sel)] {
				out.WriteString(strings.TrimSpace(selectorList))
				out.WriteByte('{')
				out.WriteString(m[2])
				out.WriteByte('}')
				break
			}
		}
	}
	return out.String()
}
