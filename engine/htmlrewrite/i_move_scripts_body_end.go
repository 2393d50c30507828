package htmlrewrite

import "github.com/PuerkitoBio/goquery"

// stepMoveScriptsBodyEnd relocates <head> scripts with a src attribute to
// just before </body>, preserving relative order, so they no longer block
// first paint (spec §4.4 step i).
func stepMoveScriptsBodyEnd(ctx *Context) error {
	body := ctx.Doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	var moved []*goquery.Selection
	ctx.Doc.Find("head script[src]").Each(func(_ int, s *goquery.Selection) {
		moved = append(moved, s)
	})

	for _, s := range moved {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			continue
		}
		s.Remove()
		body.AppendHtml(html)
	}
	return nil
}
