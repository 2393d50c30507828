package htmlrewrite

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// stepImageDimensions backfills missing width/height on <img> tags from the
// referenced file's decoded dimensions, to keep layout stable (spec §4.4
// step g).
func stepImageDimensions(ctx *Context) error {
	if ctx.AssetDims == nil {
		return nil
	}
	ctx.Doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		_, hasW := s.Attr("width")
		_, hasH := s.Attr("height")
		if hasW && hasH {
			return
		}
		src, _ := s.Attr("src")
		w, h, ok := ctx.AssetDims(src)
		if !ok {
			return
		}
		if !hasW {
			s.SetAttr("width", strconv.Itoa(w))
		}
		if !hasH {
			s.SetAttr("height", strconv.Itoa(h))
		}
	})
	return nil
}
