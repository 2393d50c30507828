// Package js implements the C3 JS transformer: dead-code drop for known
// safe identifiers (console/debugger), custom-pattern removal, minify, and
// content-hash rename or outright removal. No JS-parsing/minifying library
// exists anywhere in the example pack, so this works on a conservative
// token scan rather than a full parser (see DESIGN.md).
package js

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Settings mirrors the js.* schema leaves.
type Settings struct {
	Minify                 bool
	TerserPasses           int
	DropConsole            bool
	DropDebugger           bool
	CustomRemovePatterns   []string
	RemoveJquery           bool
}

// Removed is the sentinel Result indicating the asset was deleted outright
// and every reference to it should be dropped by the HTML rewriter.
const Removed = "<removed>"

// Result is one JS asset's transform outcome.
type Result struct {
	Content string
	NewName string
	Hash    string
	Remove  bool
}

var (
	lineCommentRE  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)
	consoleCallRE  = regexp.MustCompile(`console\.(log|debug|info|warn)\([^;]*\);?`)
	debuggerRE     = regexp.MustCompile(`\bdebugger;?`)
	wsCollapseRE   = regexp.MustCompile(`[ \t]+`)
	blankLinesRE   = regexp.MustCompile(`\n{2,}`)
)

// Transform runs the §4.3.3 algorithm on one script file's content. name is
// the asset's URL or path, used to decide whether jQuery-removal or a
// custom pattern applies.
func Transform(name, content string, s Settings) Result {
	if s.RemoveJquery && strings.Contains(strings.ToLower(name), "jquery") {
		return Result{Remove: true}
	}
	for _, pattern := range s.CustomRemovePatterns {
		if matchesCustomPattern(name, pattern) {
			return Result{Remove: true}
		}
	}

	out := content
	if s.DropConsole {
		out = consoleCallRE.ReplaceAllString(out, "")
	}
	if s.DropDebugger {
		out = debuggerRE.ReplaceAllString(out, "")
	}
	if s.Minify {
		passes := s.TerserPasses
		if passes <= 0 {
			passes = 1
		}
		if passes > 5 {
			passes = 5
		}
		for i := 0; i < passes; i++ {
			out = minifyPass(out)
		}
	}

	sum := sha256.Sum256([]byte(out))
	hash := hex.EncodeToString(sum[:])[:8]
	base := strings.TrimSuffix(baseName(name), ".js")

	return Result{
		Content: out,
		NewName: fmt.Sprintf("%s-%s.js", base, hash),
		Hash:    hash,
	}
}

func minifyPass(js string) string {
	out := blockCommentRE.ReplaceAllString(js, "")
	out = lineCommentRE.ReplaceAllString(out, "")
	out = wsCollapseRE.ReplaceAllString(out, " ")
	out = blankLinesRE.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// matchesCustomPattern supports literal substrings and /regex/ patterns, as
// named in the spec's Inputs description.
func matchesCustomPattern(name, pattern string) bool {
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1 {
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return false
		}
		return re.MatchString(name)
	}
	return strings.Contains(name, pattern)
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
