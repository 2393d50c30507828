// Package settings implements the C1 Settings Model & Diff Engine: a closed,
// typed-leaf schema, a pure deep-merge, a pure diff, and the curated
// safer-settings fallback patch. Grounded on the teacher's engine/configx
// layered spec (global/environment/domain/site/ephemeral precedence) and
// engine/config unified-config validation shape.
package settings

import "fmt"

// LeafKind enumerates the closed set of leaf types a schema node can take.
// Dynamic "any" at the boundary (spec.md Design Notes §9) is converted to one
// of these on intake; unknown shapes are rejected, not silently accepted.
type LeafKind int

const (
	KindBool LeafKind = iota
	KindInt
	KindEnum
	KindString
	KindStringList
)

// LeafSchema describes one addressable dotted-path leaf.
type LeafSchema struct {
	Path    string
	Kind    LeafKind
	Default any
	Min     int      // KindInt only
	Max     int      // KindInt only
	Enum    []string // KindEnum only
}

// Schema is the closed, process-wide set of valid settings leaves.
type Schema struct {
	leaves map[string]LeafSchema
	order  []string
}

// NewSchema builds a Schema from a slice of leaves, preserving declaration
// order (used when reporting validation warnings deterministically).
func NewSchema(leaves []LeafSchema) *Schema {
	s := &Schema{leaves: make(map[string]LeafSchema, len(leaves))}
	for _, l := range leaves {
		s.leaves[l.Path] = l
		s.order = append(s.order, l.Path)
	}
	return s
}

func (s *Schema) Lookup(path string) (LeafSchema, bool) {
	l, ok := s.leaves[path]
	return l, ok
}

func (s *Schema) Paths() []string { return s.order }

// ValidationError is one (path, reason) pair. Schema validation never
// returns a partial result: intake either succeeds or returns the full list
// of violations (spec.md §4.1 "Failure modes").
type ValidationError struct {
	Path   string
	Reason string
}

func (v ValidationError) Error() string { return fmt.Sprintf("%s: %s", v.Path, v.Reason) }

// Validate checks every leaf present in a flattened override tree against the
// schema. Out-of-range integers and unknown enum values are rejected. Unknown
// keys are accepted and preserved (forward-compat) but returned as warnings,
// not errors — matching spec.md §4.1 exactly.
func (s *Schema) Validate(flat map[string]any) (errs []ValidationError, warnings []string) {
	for path, v := range flat {
		leaf, known := s.leaves[path]
		if !known {
			warnings = append(warnings, fmt.Sprintf("unknown settings path %q (preserved)", path))
			continue
		}
		if err := validateLeaf(leaf, v); err != nil {
			errs = append(errs, ValidationError{Path: path, Reason: err.Error()})
		}
	}
	return errs, warnings
}

func validateLeaf(leaf LeafSchema, v any) error {
	switch leaf.Kind {
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case KindInt:
		n, ok := asInt(v)
		if !ok {
			return fmt.Errorf("expected int, got %T", v)
		}
		if leaf.Max > leaf.Min && (n < leaf.Min || n > leaf.Max) {
			return fmt.Errorf("value %d out of range [%d,%d]", n, leaf.Min, leaf.Max)
		}
	case KindEnum:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string enum, got %T", v)
		}
		found := false
		for _, e := range leaf.Enum {
			if e == str {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %q not in enum %v", str, leaf.Enum)
		}
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case KindStringList:
		switch list := v.(type) {
		case []string:
		case []any:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("string list element is %T, want string", item)
				}
			}
		default:
			return fmt.Errorf("expected string list, got %T", v)
		}
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// DefaultSchema is the process-wide closed schema for siteforge. Defaults are
// process-wide constants (spec.md §3 "Ownership"); overrides live on Site.
//
// Open Question #1 resolution (SPEC_FULL §9): build.scope takes precedence
// over build.pageSelection when both are set — scope-first, pageSelection
// second.
func DefaultSchema() *Schema {
	return NewSchema([]LeafSchema{
		{Path: "build.maxPages", Kind: KindInt, Default: 200, Min: 1, Max: 5000},
		{Path: "build.maxConcurrentPages", Kind: KindInt, Default: 6, Min: 1, Max: 64},
		{Path: "build.pageLoadTimeoutMs", Kind: KindInt, Default: 15000, Min: 1000, Max: 120000},
		{Path: "build.networkIdleTimeoutMs", Kind: KindInt, Default: 3000, Min: 0, Max: 60000},
		{Path: "build.crawlWaitMs", Kind: KindInt, Default: 500, Min: 0, Max: 30000},
		{Path: "build.scope", Kind: KindEnum, Default: "full", Enum: []string{"full", "custom"}},
		{Path: "build.pageSelection", Kind: KindEnum, Default: "sitemap", Enum: []string{"sitemap", "url_list", "pattern"}},
		{Path: "build.customUrls", Kind: KindStringList, Default: []string{}},
		{Path: "build.excludeGlobs", Kind: KindStringList, Default: []string{}},
		{Path: "build.pipelineTimeoutMinutes", Kind: KindInt, Default: 30, Min: 1, Max: 180},
		{Path: "build.maxRetries", Kind: KindInt, Default: 3, Min: 0, Max: 10},
		{Path: "build.retryBackoffMs", Kind: KindInt, Default: 200, Min: 0, Max: 60000},

		{Path: "image.quality.jpeg", Kind: KindInt, Default: 75, Min: 1, Max: 100},
		{Path: "image.quality.webp", Kind: KindInt, Default: 75, Min: 1, Max: 100},
		{Path: "image.quality.avif", Kind: KindInt, Default: 45, Min: 1, Max: 100},
		{Path: "image.maxWidth", Kind: KindInt, Default: 1920, Min: 100, Max: 8000},
		{Path: "image.breakpoints", Kind: KindStringList, Default: []string{"320", "640", "768", "1024"}},
		{Path: "image.effort", Kind: KindInt, Default: 4, Min: 0, Max: 9},
		{Path: "image.stripMetadata", Kind: KindBool, Default: true},
		{Path: "image.convertWebp", Kind: KindBool, Default: true},
		{Path: "image.convertAvif", Kind: KindBool, Default: true},
		{Path: "image.keepOriginal", Kind: KindBool, Default: true},
		{Path: "image.optimizeSvg", Kind: KindBool, Default: true},
		{Path: "image.lcpMode", Kind: KindEnum, Default: "auto", Enum: []string{"auto", "manual"}},
		{Path: "image.lcpSelector", Kind: KindString, Default: ""},
		{Path: "image.lcpCandidateCount", Kind: KindInt, Default: 3, Min: 0, Max: 10},

		{Path: "css.purge", Kind: KindBool, Default: true},
		{Path: "css.purgeAggressiveness", Kind: KindEnum, Default: "safe", Enum: []string{"safe", "aggressive"}},
		{Path: "css.minifyPreset", Kind: KindEnum, Default: "default", Enum: []string{"lite", "default", "advanced"}},
		{Path: "css.critical", Kind: KindBool, Default: true},
		{Path: "css.fontDisplay", Kind: KindEnum, Default: "swap", Enum: []string{"auto", "block", "swap", "fallback", "optional"}},
		{Path: "css.combineStylesheets", Kind: KindBool, Default: false},

		{Path: "js.minify", Kind: KindBool, Default: true},
		{Path: "js.terserPasses", Kind: KindInt, Default: 2, Min: 1, Max: 5},
		{Path: "js.dropConsole", Kind: KindBool, Default: false},
		{Path: "js.dropDebugger", Kind: KindBool, Default: true},
		{Path: "js.customRemovePatterns", Kind: KindStringList, Default: []string{}},
		{Path: "js.defaultLoadingStrategy", Kind: KindEnum, Default: "defer", Enum: []string{"defer", "async", "none"}},
		{Path: "js.removeJquery", Kind: KindBool, Default: false},
		{Path: "js.moveToBodyEnd", Kind: KindBool, Default: true},

		{Path: "html.removeGenerator", Kind: KindBool, Default: true},
		{Path: "html.removeRSD", Kind: KindBool, Default: true},
		{Path: "html.removeWlwmanifest", Kind: KindBool, Default: true},
		{Path: "html.removeShortlink", Kind: KindBool, Default: true},
		{Path: "html.removeOembed", Kind: KindBool, Default: true},
		{Path: "html.removeEmojiPrefetch", Kind: KindBool, Default: true},
		{Path: "html.removePingback", Kind: KindBool, Default: true},
		{Path: "html.lazyLoad", Kind: KindBool, Default: true},
		{Path: "html.facadesEnabled", Kind: KindStringList, Default: []string{"youtube", "vimeo", "wistia", "loom", "bunny", "mux", "dailymotion", "streamable", "twitch", "video"}},
		{Path: "html.privacyEnhancedEmbeds", Kind: KindBool, Default: true},
		{Path: "html.googleMapsFacade", Kind: KindBool, Default: true},
		{Path: "html.minifier.removeAttributeQuotes", Kind: KindBool, Default: false},
		{Path: "html.minifier.removeOptionalTags", Kind: KindBool, Default: false},
		{Path: "html.minifier.removeEmptyElements", Kind: KindBool, Default: false},
		{Path: "html.minifier.collapseWhitespace", Kind: KindBool, Default: true},
		{Path: "html.clsFixesEnabled", Kind: KindBool, Default: true},
		{Path: "html.svgSpriteDedup", Kind: KindBool, Default: true},
		{Path: "html.maxPreconnects", Kind: KindInt, Default: 4, Min: 0, Max: 10},
		{Path: "html.fontPreloadCount", Kind: KindInt, Default: 3, Min: 0, Max: 8},

		{Path: "headers.html.cacheControl", Kind: KindString, Default: "public,max-age=600"},
		{Path: "headers.unhashedImages.cacheControl", Kind: KindString, Default: "public,max-age=604800"},
		{Path: "headers.fonts.cacheControl", Kind: KindString, Default: "public,max-age=31536000"},
		{Path: "headers.favicon.cacheControl", Kind: KindString, Default: "public,max-age=86400"},
		{Path: "headers.security.enabled", Kind: KindStringList, Default: []string{"nosniff", "frameOptions", "hsts", "referrerPolicy", "permissionsPolicy", "xssProtection"}},

		{Path: "verify.pagespeedEnabled", Kind: KindBool, Default: false},
		{Path: "verify.hardPassPageSpeedMin", Kind: KindInt, Default: 85, Min: 0, Max: 100},
		{Path: "verify.softPassPageSpeedMin", Kind: KindInt, Default: 75, Min: 0, Max: 100},
		{Path: "verify.softPassAvgPerfMin", Kind: KindInt, Default: 80, Min: 0, Max: 100},

		{Path: "agent.maxIterations", Kind: KindInt, Default: 10, Min: 0, Max: 50},
		{Path: "agent.pipelineTimeoutMinutes", Kind: KindInt, Default: 30, Min: 1, Max: 180},
		{Path: "agent.sslReadyPollMinutes", Kind: KindInt, Default: 2, Min: 0, Max: 30},
	})
}
