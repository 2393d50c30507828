package htmlrewrite

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func newCtx(t *testing.T, html string, settings Settings) *Context {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &Context{
		Doc:         doc,
		Page:        &models.CrawledPage{},
		Settings:    settings,
		RenameCSS:   models.RenameMap{},
		RenameJS:    models.RenameMap{},
		RenameImage: models.RenameMap{},
	}
}

func TestRunExecutesAllStepsWithoutPanicking(t *testing.T) {
	html := `<html><head>
		<meta name="generator" content="wp">
		<link rel="stylesheet" href="style.css">
		<script src="a.js"></script>
	</head><body>
		<img src="hero.png">
		<iframe src="https://www.youtube.com/embed/abc123"></iframe>
	</body></html>`

	ctx := newCtx(t, html, Settings{
		RemoveGenerator:   true,
		LazyLoad:          true,
		FacadesEnabled:    []string{"youtube"},
		LCPCandidateCount: 1,
		ImageBreakpoints:  []int{320, 640},
		ConvertWebp:       true,
	})
	ctx.RenameCSS["style.css"] = "style-abc123.css"
	ctx.RenameJS["a.js"] = "a-def456.js"
	ctx.RenameImage["hero.png"] = "hero-789.png"

	require.NotPanics(t, func() {
		Run(context.Background(), ctx, nil)
	})

	out, err := ctx.Doc.Html()
	require.NoError(t, err)
	require.NotContains(t, out, `name="generator"`)
	require.Contains(t, out, "style-abc123.css")
	require.Contains(t, out, "video-facade")
}

func TestStepRewriteReferencesDropsRemovedScript(t *testing.T) {
	ctx := newCtx(t, `<html><head><script src="old.js"></script></head><body></body></html>`, Settings{})
	ctx.RenameJS["old.js"] = models.RemovedSentinel

	require.NoError(t, stepRewriteReferences(ctx))
	require.Equal(t, 1, ctx.ScriptsRemoved)
	out, err := ctx.Doc.Html()
	require.NoError(t, err)
	require.NotContains(t, out, "old.js")
}

func TestStepDeferScriptsSkipsExceptions(t *testing.T) {
	ctx := newCtx(t, `<html><head>
		<script src="critical.js"></script>
		<script src="vendor.js"></script>
	</head><body></body></html>`, Settings{DeferExceptions: []string{"critical"}})

	require.NoError(t, stepDeferScripts(ctx))

	critical := ctx.Doc.Find("script[src='critical.js']")
	_, hasDefer := critical.Attr("defer")
	require.False(t, hasDefer)

	vendor := ctx.Doc.Find("script[src='vendor.js']")
	_, hasDefer = vendor.Attr("defer")
	require.True(t, hasDefer)
}

func TestStepSVGSpriteDedupHoistsDuplicates(t *testing.T) {
	svg := `<svg viewBox="0 0 10 10"><path d="M0 0"/></svg>`
	html := `<html><body>` + svg + svg + `<p>text</p></body></html>`
	ctx := newCtx(t, html, Settings{SVGSpriteDedup: true})

	require.NoError(t, stepSVGSpriteDedup(ctx))

	out, err := ctx.Doc.Html()
	require.NoError(t, err)
	require.Contains(t, out, "<symbol")
	require.Contains(t, out, "<use href=")
}

func TestStepCriticalCSSInlinesCoveredRules(t *testing.T) {
	html := `<html><head><link rel="stylesheet" href="app.css"></head><body class="hero"></body></html>`
	ctx := newCtx(t, html, Settings{CriticalCSS: true})
	ctx.Page.CoverageCSS = map[string][]string{"app.css": {".hero"}}
	ctx.CSSContent = map[string]string{"app.css": ".hero{color:red}.unused{color:blue}"}

	require.NoError(t, stepCriticalCSS(ctx))

	out, err := ctx.Doc.Html()
	require.NoError(t, err)
	require.Contains(t, out, `data-critical="true"`)
	require.Contains(t, out, ".hero{color:red}")
	require.NotContains(t, out, ".unused")
	require.Contains(t, out, `rel="preload"`)
}

func TestStepImageDimensionsBackfillsMissingAttrs(t *testing.T) {
	ctx := newCtx(t, `<html><body><img src="a.png"></body></html>`, Settings{})
	ctx.AssetDims = func(path string) (int, int, bool) {
		if path == "a.png" {
			return 100, 50, true
		}
		return 0, 0, false
	}

	require.NoError(t, stepImageDimensions(ctx))

	img := ctx.Doc.Find("img")
	w, _ := img.Attr("width")
	h, _ := img.Attr("height")
	require.Equal(t, "100", w)
	require.Equal(t, "50", h)
}
