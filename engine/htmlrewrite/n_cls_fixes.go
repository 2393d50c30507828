package htmlrewrite

import "github.com/PuerkitoBio/goquery"

// stepCLSFixes applies layout-stability patches, all gated together by
// CLSFixesEnabled:
// an aspect-ratio box around bare iframes, a min-height floor on ad
// containers, fixed positioning for cookie/consent banners, and CSS
// containment on container-ish wrappers (spec §4.4 step n).
func stepCLSFixes(ctx *Context) error {
	if !ctx.Settings.CLSFixesEnabled {
		return nil
	}
	doc := ctx.Doc

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("style"); ok {
			return
		}
		if s.Closest(".video-facade, .maps-facade").Length() > 0 {
			return
		}
		wrapped, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		s.ReplaceWithHtml(`<div style="position:relative;padding-bottom:56.25%;height:0;overflow:hidden">` +
			withAbsoluteFill(wrapped) + `</div>`)
	})

	doc.Find("[class*='ad-'], [id*='ad-slot'], [class*='advert']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if style != "" {
			style += ";"
		}
		s.SetAttr("style", style+"min-height:250px")
	})

	doc.Find("[class*='cookie'], [class*='consent'], [id*='cookie'], [id*='consent']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if style != "" {
			style += ";"
		}
		s.SetAttr("style", style+"position:fixed")
	})

	doc.Find("[class*='container'], [class*='wrapper']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if style != "" {
			style += ";"
		}
		s.SetAttr("style", style+"contain:layout style")
	})
	return nil
}

func withAbsoluteFill(iframeHTML string) string {
	const inject = `style="position:absolute;top:0;left:0;width:100%;height:100%"`
	idx := len("<iframe")
	if len(iframeHTML) < idx {
		return iframeHTML
	}
	return iframeHTML[:idx] + " " + inject + iframeHTML[idx:]
}
