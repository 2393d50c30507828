package htmlrewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepDeferScripts adds a defer attribute to every <script src> that isn't
// already async/defer/module, unless its src matches an exception pattern
// (spec §4.4 step j).
func stepDeferScripts(ctx *Context) error {
	exceptions := ctx.Settings.DeferExceptions
	ctx.Doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("async"); ok {
			return
		}
		if _, ok := s.Attr("defer"); ok {
			return
		}
		if typ, ok := s.Attr("type"); ok && typ == "module" {
			return
		}
		src, _ := s.Attr("src")
		for _, ex := range exceptions {
			if ex != "" && strings.Contains(src, ex) {
				return
			}
		}
		s.SetAttr("defer", "")
	})
	return nil
}
