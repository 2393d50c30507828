package htmlrewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepSVGSpriteDedup hoists inline <svg> markup that recurs two or more
// times into a single hidden <svg><symbol> sprite appended to <body>,
// replacing each occurrence with <svg><use href="#id"></svg> (spec §4.4
// step l).
func stepSVGSpriteDedup(ctx *Context) error {
	if !ctx.Settings.SVGSpriteDedup {
		return nil
	}
	body := ctx.Doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}

	occurrences := map[string][]*goquery.Selection{}
	var order []string
	ctx.Doc.Find("svg").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("symbol").Length() > 0 {
			return
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		markup = strings.TrimSpace(markup)
		if _, seen := occurrences[markup]; !seen {
			order = append(order, markup)
		}
		occurrences[markup] = append(occurrences[markup], s)
	})

	ctx.spriteSymbols = map[string]string{}
	var symbols strings.Builder
	id := 0
	for _, markup := range order {
		nodes := occurrences[markup]
		if len(nodes) < 2 {
			continue
		}
		id++
		symbolID := fmt.Sprintf("sprite-%d", id)
		ctx.spriteSymbols[markup] = symbolID
		inner := svgInnerMarkup(markup)
		symbols.WriteString(fmt.Sprintf(`<symbol id="%s">%s</symbol>`, symbolID, inner))
		for _, node := range nodes {
			node.ReplaceWithHtml(fmt.Sprintf(`<svg><use href="#%s"></use></svg>`, symbolID))
		}
	}

	if symbols.Len() == 0 {
		return nil
	}
	body.AppendHtml(`<svg style="display:none" aria-hidden="true">` + symbols.String() + `</svg>`)
	return nil
}

func svgInnerMarkup(outer string) string {
	start := strings.Index(outer, ">")
	end := strings.LastIndex(outer, "</svg>")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return outer[start+1 : end]
}
