package htmlrewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepWidgetFacades replaces Google Maps embeds with a static-image
// placeholder when enabled (spec §4.4 step e).
func stepWidgetFacades(ctx *Context) error {
	if !ctx.Settings.GoogleMapsFacade {
		return nil
	}
	ctx.Doc.Find("iframe[src*='google.com/maps']").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		html := fmt.Sprintf(
			`<div class="maps-facade" data-src="%s"><div class="maps-facade-static">Map — click to load</div><button class="maps-facade-activate" onclick="var d=this.parentElement;var f=document.createElement('iframe');f.src=d.dataset.src;f.frameBorder='0';d.replaceChildren(f);">Load map</button></div>`,
			strings.ReplaceAll(src, `"`, "&quot;"),
		)
		s.ReplaceWithHtml(html)
		ctx.FacadesApplied++
	})
	return nil
}
