package css

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformPurgeDropsUnusedSelector(t *testing.T) {
	src := `.used { color: red; } .unused { color: blue; }`
	html := `<div class="used"></div>`
	res := Transform("app.css", src, html, Settings{Purge: true, PurgeAggressiveness: AggressivenessAggressive, MinifyPreset: MinifyLite})
	require.Contains(t, res.Content, ".used")
	require.NotContains(t, res.Content, ".unused")
}

func TestTransformPurgePreservesFontFaceAndKeyframes(t *testing.T) {
	src := `@font-face { font-family: "X"; src: url(x.woff2); } @keyframes spin { from{} to{} } .unused{color:red}`
	res := Transform("app.css", src, "<div></div>", Settings{Purge: true, PurgeAggressiveness: AggressivenessAggressive, MinifyPreset: MinifyLite})
	require.Contains(t, res.Content, "@font-face")
	require.Contains(t, res.Content, "@keyframes")
}

func TestTransformSafeAggressivenessKeepsSafelistedPrefixes(t *testing.T) {
	src := `.js-toggle { display:none; } .totally-unused-xyz { color: red; }`
	res := Transform("app.css", src, "<div></div>", Settings{Purge: true, PurgeAggressiveness: AggressivenessSafe, MinifyPreset: MinifyLite})
	require.Contains(t, res.Content, "js-toggle")
}

func TestInjectFontDisplayAddsParamWhenAbsent(t *testing.T) {
	src := `@font-face { font-family: "X"; src: url(x.woff2); }`
	res := Transform("app.css", src, "", Settings{FontDisplay: "swap", MinifyPreset: MinifyLite})
	require.Contains(t, res.Content, "font-display: swap")
}

func TestTransformProducesHashedName(t *testing.T) {
	res := Transform("app.css", `.a{color:red}`, "<div class=a></div>", Settings{MinifyPreset: MinifyLite})
	require.Regexp(t, `^app-[0-9a-f]{8}\.css$`, res.NewName)
}

func TestMinifyDefaultCollapsesWhitespace(t *testing.T) {
	out := minify(".a {\n  color: red;\n}\n", MinifyDefault)
	require.NotContains(t, out, "\n")
}

func TestCombineConcatenatesWithSourceMarkers(t *testing.T) {
	res := Combine([]string{"a.css", "b.css"}, []string{".a{color:red}", ".b{color:blue}"}, "<div class=\"a b\"></div>", Settings{MinifyPreset: MinifyLite})
	require.Contains(t, res.Content, "Source: a.css")
	require.Contains(t, res.Content, "Source: b.css")
}
