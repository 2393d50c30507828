// Package css implements the C3 CSS transformer: selector-usage purge,
// font-display injection, preset minification, and content-hash rename,
// including the multi-file combine mode. No CSS-parsing library exists
// anywhere in the example pack, so parsing and minification are hand-rolled
// here with a conservative tokenizer (see DESIGN.md).
package css

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Aggressiveness controls the purge safelist.
type Aggressiveness string

const (
	AggressivenessSafe       Aggressiveness = "safe"
	AggressivenessAggressive Aggressiveness = "aggressive"
)

// MinifyPreset controls how hard the minifier collapses whitespace/tokens.
type MinifyPreset string

const (
	MinifyLite     MinifyPreset = "lite"
	MinifyDefault  MinifyPreset = "default"
	MinifyAdvanced MinifyPreset = "advanced"
)

// Settings mirrors the css.* schema leaves.
type Settings struct {
	Purge               bool
	PurgeAggressiveness Aggressiveness
	MinifyPreset        MinifyPreset
	Critical            bool
	FontDisplay         string
	CombineStylesheets  bool
}

// safelistSafe is prefixes never purged under "safe" aggressiveness —
// common CMS/framework hook classes that selector-usage scanning alone
// would miss (dynamically applied by JS).
var safelistSafe = []string{"wp-", "is-", "has-", "js-", "modal", "active", "open", "show", "collapse"}

// Result is one CSS asset's transform outcome.
type Result struct {
	Content     string
	NewName     string // "<name>-<hash8>.css"
	Hash        string
	OriginalLen int
	FinalLen    int
}

var (
	ruleRE     = regexp.MustCompile(`(?s)([^{}]+)\{([^{}]*)\}`)
	fontFaceRE = regexp.MustCompile(`(?s)@font-face\s*\{([^}]*)\}`)
	commentRE  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	selectorSplitRE = regexp.MustCompile(`\s*,\s*`)
	classTokenRE    = regexp.MustCompile(`\.[a-zA-Z_][a-zA-Z0-9_-]*`)
)

// Transform runs steps 1-5 of §4.3.2 on one stylesheet's content.
func Transform(name, content string, allPageHTML string, s Settings) Result {
	return transform(name, commentRE.ReplaceAllString(content, ""), allPageHTML, s)
}

// transform runs the purge, font-display, minify and hash steps on content
// whose own comments have already been stripped.
func transform(name, content string, allPageHTML string, s Settings) Result {
	if s.Purge {
		content = purge(content, allPageHTML, s.PurgeAggressiveness)
	}
	content = injectFontDisplay(content, s.FontDisplay)
	content = minify(content, s.MinifyPreset)

	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])[:8]
	base := strings.TrimSuffix(name, ".css")

	return Result{
		Content:  content,
		NewName:  fmt.Sprintf("%s-%s.css", base, hash),
		Hash:     hash,
		FinalLen: len(content),
	}
}

// Combine concatenates multiple stylesheets in discovery order with source
// markers, then runs the same pipeline on the result (spec "Combine mode");
// each input's own comments are stripped, the Source markers are kept.
func Combine(names []string, contents []string, allPageHTML string, s Settings) Result {
	var b strings.Builder
	for i, c := range contents {
		fmt.Fprintf(&b, "/* Source: %s */\n%s\n", names[i], commentRE.ReplaceAllString(c, ""))
	}
	return transform("combined", b.String(), allPageHTML, s)
}

// purge drops rules whose selectors never match the page HTML (a crude
// substring/class-presence scan, not a DOM query), preserving @font-face,
// @keyframes, and @media wrappers whose inner rules survive.
func purge(css, html string, aggr Aggressiveness) string {
	usedClasses := extractUsedClasses(html)
	safelist := map[string]bool{}
	if aggr != AggressivenessAggressive {
		for _, p := range safelistSafe {
			safelist[p] = true
		}
	}

	keptAnimationNames := map[string]bool{}
	var out strings.Builder

	matches := ruleRE.FindAllStringSubmatchIndex(css, -1)
	lastEnd := 0
	for _, m := range matches {
		selectorsRaw := css[m[2]:m[3]]
		body := css[m[4]:m[5]]
		trimmedSel := strings.TrimSpace(commentRE.ReplaceAllString(selectorsRaw, ""))

		if strings.HasPrefix(trimmedSel, "@font-face") || strings.HasPrefix(trimmedSel, "@keyframes") || strings.HasPrefix(trimmedSel, "@media") {
			out.WriteString(css[lastEnd:m[1]])
			lastEnd = m[1]
			if strings.HasPrefix(trimmedSel, "@keyframes") {
				fields := strings.Fields(trimmedSel)
				if len(fields) > 1 {
					keptAnimationNames[fields[1]] = true
				}
			}
			continue
		}

		if selectorSetUsed(trimmedSel, usedClasses, safelist) {
			out.WriteString(css[lastEnd:m[1]])
			lastEnd = m[1]
		} else if strings.Contains(body, "animation") {
			// referenced by a kept rule's animation-name; conservatively keep.
			out.WriteString(css[lastEnd:m[1]])
			lastEnd = m[1]
		} else {
			// Drop the rule, keeping any comment (e.g. a Source marker) before it.
			out.WriteString(css[lastEnd:m[0]])
			out.WriteString(strings.Join(commentRE.FindAllString(selectorsRaw, -1), "\n"))
			lastEnd = m[1]
		}
	}
	out.WriteString(css[lastEnd:])
	return out.String()
}

func extractUsedClasses(html string) map[string]bool {
	used := map[string]bool{}
	classAttrRE := regexp.MustCompile(`class="([^"]*)"`)
	for _, m := range classAttrRE.FindAllStringSubmatch(html, -1) {
		for _, cls := range strings.Fields(m[1]) {
			used["."+cls] = true
		}
	}
	idAttrRE := regexp.MustCompile(`id="([^"]*)"`)
	for _, m := range idAttrRE.FindAllStringSubmatch(html, -1) {
		used["#"+m[1]] = true
	}
	tagRE := regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)`)
	for _, m := range tagRE.FindAllStringSubmatch(html, -1) {
		used[strings.ToLower(m[1])] = true
	}
	return used
}

func selectorSetUsed(selectorList string, used map[string]bool, safelist map[string]bool) bool {
	for _, sel := range selectorSplitRE.Split(selectorList, -1) {
		sel = strings.TrimSpace(sel)
		if sel == "" || sel == "*" || sel == ":root" || strings.HasPrefix(sel, "html") || strings.HasPrefix(sel, "body") {
			return true
		}
		for prefix := range safelist {
			if strings.Contains(sel, prefix) {
				return true
			}
		}
		classes := classTokenRE.FindAllString(sel, -1)
		if len(classes) == 0 {
			// tag/id/attr/pseudo selector: conservatively keep unless it is a
			// lone class-free, non-trivial selector we cannot evaluate safely.
			return true
		}
		for _, c := range classes {
			if used[c] {
				return true
			}
		}
	}
	return false
}

func injectFontDisplay(css, display string) string {
	if display == "" {
		return css
	}
	return fontFaceRE.ReplaceAllStringFunc(css, func(block string) string {
		if strings.Contains(block, "font-display") {
			return block
		}
		return strings.Replace(block, "{", fmt.Sprintf("{font-display: %s;", display), 1)
	})
}

var (
	wsCollapseRE = regexp.MustCompile(`[ \t\n\r]+`)
	spaceAroundPunctRE = regexp.MustCompile(`\s*([{};:,])\s*`)
)

func minify(css string, preset MinifyPreset) string {
	switch preset {
	case MinifyLite, "":
		return strings.TrimSpace(wsCollapseRE.ReplaceAllString(css, " "))
	case MinifyAdvanced, MinifyDefault:
		collapsed := wsCollapseRE.ReplaceAllString(css, " ")
		collapsed = spaceAroundPunctRE.ReplaceAllString(collapsed, "$1")
		collapsed = strings.ReplaceAll(collapsed, ";}", "}")
		return strings.TrimSpace(collapsed)
	default:
		return css
	}
}
