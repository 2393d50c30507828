package js

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformDropsConsoleAndDebugger(t *testing.T) {
	src := `function f(){ console.log("hi"); debugger; return 1; }`
	res := Transform("app.js", src, Settings{DropConsole: true, DropDebugger: true})
	require.NotContains(t, res.Content, "console.log")
	require.NotContains(t, res.Content, "debugger")
}

func TestTransformRemoveJquery(t *testing.T) {
	res := Transform("/static/jquery-3.6.0.min.js", "var jQuery;", Settings{RemoveJquery: true})
	require.True(t, res.Remove)
}

func TestTransformCustomPatternLiteral(t *testing.T) {
	res := Transform("/static/legacy-polyfill.js", "x;", Settings{CustomRemovePatterns: []string{"legacy-"}})
	require.True(t, res.Remove)
}

func TestTransformCustomPatternRegex(t *testing.T) {
	res := Transform("/static/analytics-v2.js", "x;", Settings{CustomRemovePatterns: []string{"/analytics-v\\d+/"}})
	require.True(t, res.Remove)
}

func TestTransformMinifyCollapsesWhitespace(t *testing.T) {
	src := "function f() {\n  // comment\n  return 1;\n}\n"
	res := Transform("app.js", src, Settings{Minify: true, TerserPasses: 2})
	require.NotContains(t, res.Content, "comment")
	require.NotContains(t, res.Content, "\n\n")
}

func TestTransformProducesHashedName(t *testing.T) {
	res := Transform("app.js", "var x=1;", Settings{})
	require.Regexp(t, `^app-[0-9a-f]{8}\.js$`, res.NewName)
}
