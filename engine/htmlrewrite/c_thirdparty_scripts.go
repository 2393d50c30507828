package htmlrewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// thirdPartyAction is what to do with a classified third-party script.
type thirdPartyAction string

const (
	actionRemove thirdPartyAction = "remove"
	actionDefer  thirdPartyAction = "defer"
	actionKeep   thirdPartyAction = "keep"
)

// vendorFingerprints maps a src substring to its classification action.
// Analytics/pixel/heatmap vendors are deferred by default rather than kept
// synchronous; explicit removal is reserved for vendors with no
// rendering role (pure trackers duplicated by a tag manager).
var vendorFingerprints = map[string]thirdPartyAction{
	"google-analytics.com":  actionDefer,
	"googletagmanager.com":  actionDefer,
	"connect.facebook.net":  actionDefer,
	"hotjar.com":            actionDefer,
	"fullstory.com":         actionDefer,
	"clarity.ms":            actionDefer,
	"doubleclick.net":       actionRemove,
	"quantserve.com":        actionRemove,
}

// stepThirdPartyScripts classifies <script src> tags by known vendor
// fingerprint and removes or defers them, collecting removed-script
// identifiers into a placeholder block for a deferred tag-manager load
// (spec §4.4 step c).
func stepThirdPartyScripts(ctx *Context) error {
	doc := ctx.Doc
	var removedIDs []string

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		action := classifyVendor(src)
		switch action {
		case actionRemove:
			removedIDs = append(removedIDs, src)
			s.Remove()
			ctx.ScriptsRemoved++
		case actionDefer:
			if _, has := s.Attr("defer"); !has {
				s.SetAttr("defer", "")
			}
		}
	})

	if len(removedIDs) > 0 {
		placeholder := "<!-- tag-manager placeholder: deferred " + strings.Join(removedIDs, ", ") + " -->"
		doc.Find("body").AppendHtml(placeholder)
	}
	return nil
}

func classifyVendor(src string) thirdPartyAction {
	for fingerprint, action := range vendorFingerprints {
		if strings.Contains(src, fingerprint) {
			return action
		}
	}
	return actionKeep
}
