package htmlrewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepFontOptimize stamps a font-display=swap query param onto every
// .woff2 link href that lacks one, so the effective display policy is
// visible without re-parsing CSS (spec §4.4 step h). It adds no preload
// hints itself; step m turns those links into preloads via preloadFontHint.
func stepFontOptimize(ctx *Context) error {
	head := ctx.Doc.Find("head").First()
	if head.Length() == 0 {
		return nil
	}

	ctx.Doc.Find("link[href*='.woff2']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "font-display=") {
			sep := "?"
			if strings.Contains(href, "?") {
				sep = "&"
			}
			s.SetAttr("href", href+sep+"font-display=swap")
		}
	})
	return nil
}

// preloadFontHint builds a <link rel=preload as=font> element for a
// self-hosted face, used by step m (stepResourceHints) when assembling the
// resource-hint set.
func preloadFontHint(href string) string {
	return fmt.Sprintf(`<link rel="preload" as="font" type="font/woff2" href="%s" crossorigin>`, href)
}
