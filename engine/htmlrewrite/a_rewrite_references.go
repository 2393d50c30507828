package htmlrewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siteforge/engine/models"
)

// stepRewriteReferences applies the CSS/JS rename maps to every
// link/script/src reference. A JS reference that resolves to the removed
// sentinel drops its <script> element entirely (spec §4.4 step a).
func stepRewriteReferences(ctx *Context) error {
	doc := ctx.Doc

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if rel != "stylesheet" {
			return
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if newPath, found := ctx.RenameCSS[href]; found {
			s.SetAttr("href", newPath)
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		newPath, found := ctx.RenameJS[src]
		if !found {
			return
		}
		if newPath == models.RemovedSentinel {
			s.Remove()
			ctx.ScriptsRemoved++
			return
		}
		s.SetAttr("src", newPath)
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if newPath, found := ctx.RenameImage[src]; found {
			s.SetAttr("src", newPath)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		changed := false
		for old, nw := range ctx.RenameCSS {
			if strings.Contains(text, old) {
				text = strings.ReplaceAll(text, "url("+old+")", "url("+nw+")")
				changed = true
			}
		}
		if changed {
			s.SetHtml(text)
		}
	})

	return nil
}
