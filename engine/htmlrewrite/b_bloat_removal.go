package htmlrewrite

import "github.com/PuerkitoBio/goquery"

// stepBloatRemoval strips CMS bloat tags gated by individual boolean
// toggles (spec §4.4 step b).
func stepBloatRemoval(ctx *Context) error {
	s := ctx.Settings
	doc := ctx.Doc

	if s.RemoveGenerator {
		doc.Find("meta[name='generator']").Remove()
	}
	if s.RemoveRSD {
		doc.Find("link[rel='EditURI']").Remove()
	}
	if s.RemoveWlwmanifest {
		doc.Find("link[rel='wlwmanifest']").Remove()
	}
	if s.RemoveShortlink {
		doc.Find("link[rel='shortlink']").Remove()
	}
	if s.RemoveOembed {
		doc.Find("link[type='application/json+oembed'], link[type='text/xml+oembed']").Remove()
	}
	if s.RemovePingback {
		doc.Find("link[rel='pingback']").Remove()
	}
	if s.RemoveEmojiPrefetch {
		doc.Find("link[rel='dns-prefetch'][href*='s.w.org']").Remove()
		doc.Find("script[src*='wp-emoji-release']").Remove()
	}
	return nil
}
