// Package htmlrewrite implements C4: the ordered, per-page DOM pass over a
// crawled page's HTML. Each of the 15 steps (a-o) lives in its own file and
// is wrapped by Run with per-step recover+log isolation (spec §4.4
// "Error isolation"), grounded on goquery DOM manipulation the way the
// crawler (C2) already uses it for discovery.
package htmlrewrite

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"siteforge/engine/models"
	"siteforge/engine/telemetry/logging"
)

// Settings bundles every html.* (plus cross-cutting css/js/image) leaf a
// rewrite step reads.
type Settings struct {
	RemoveGenerator        bool
	RemoveRSD               bool
	RemoveWlwmanifest       bool
	RemoveShortlink         bool
	RemoveOembed            bool
	RemoveEmojiPrefetch     bool
	RemovePingback          bool
	LazyLoad                bool
	FacadesEnabled          []string // youtube|vimeo|wistia|loom|bunny|mux|dailymotion|streamable|twitch|video
	PrivacyEnhancedEmbeds   bool
	GoogleMapsFacade        bool
	MinifierRemoveAttributeQuotes bool
	MinifierRemoveOptionalTags    bool
	MinifierRemoveEmptyElements  bool
	MinifierCollapseWhitespace   bool
	CLSFixesEnabled         bool
	CriticalCSS             bool
	SVGSpriteDedup          bool
	MaxPreconnects          int
	FontPreloadCount        int
	LCPMode                 string // auto|manual
	LCPSelector             string
	LCPCandidateCount       int
	ConvertWebp             bool
	ConvertAvif             bool
	ImageBreakpoints        []int
	DeferExceptions         []string // script src substrings never deferred
}

// ImageVariant records which modern-format sibling files a given <img> src
// actually got written during the images phase, so step f only references
// a .webp/.avif path that exists on disk (no Encoder wired means no
// variants, which means no <source> tags — never a dangling reference).
type ImageVariant struct {
	WebP bool
	AVIF bool
}

// Context is the shared, mutable state every step reads and writes.
type Context struct {
	Doc      *goquery.Document
	Page     *models.CrawledPage
	Settings Settings

	RenameCSS   models.RenameMap
	RenameJS    models.RenameMap
	RenameImage models.RenameMap

	// ImageVariants is keyed by the literal src attribute value found on
	// this page, mirroring RenameCSS/RenameJS's per-page keying.
	ImageVariants map[string]ImageVariant

	// AssetDims resolves a local asset path to its decoded pixel size, used
	// by step g to backfill missing width/height attributes.
	AssetDims func(localPath string) (w, h int, ok bool)

	// CSSContent holds each renamed stylesheet's final text, keyed by its
	// post-rename path, so step k can extract above-the-fold rules without
	// re-fetching the file.
	CSSContent map[string]string

	FacadesApplied  int
	ScriptsRemoved  int
	ExternalOrigins []string // discovered during step m, reference set for preconnect pruning

	spriteSymbols map[string]string // step l state: symbol markup -> assigned id
}

// Step is one of the 15 ordered passes.
type Step struct {
	Name string
	Run  func(ctx *Context) error
}

// Steps returns the ordered a-o pipeline.
func Steps() []Step {
	return []Step{
		{"rewrite_references", stepRewriteReferences},
		{"bloat_removal", stepBloatRemoval},
		{"thirdparty_scripts", stepThirdPartyScripts},
		{"video_facade", stepVideoFacade},
		{"widget_facades", stepWidgetFacades},
		{"image_rewrite", stepImageRewrite},
		{"image_dimensions", stepImageDimensions},
		{"font_optimize", stepFontOptimize},
		{"move_scripts_body_end", stepMoveScriptsBodyEnd},
		{"defer_scripts", stepDeferScripts},
		{"critical_css", stepCriticalCSS},
		{"svg_sprite_dedup", stepSVGSpriteDedup},
		{"resource_hints", stepResourceHints},
		{"cls_fixes", stepCLSFixes},
		{"final_minify", stepFinalMinify},
	}
}

// Run executes every step in order. A step that panics or returns an error
// is logged and skipped; the page is never aborted (spec §4.4 "Error
// isolation").
func Run(goCtx context.Context, ctx *Context, log logging.Logger) {
	for _, step := range Steps() {
		runStepIsolated(goCtx, ctx, step, log)
	}
}

func runStepIsolated(goCtx context.Context, ctx *Context, step Step, log logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.WarnCtx(goCtx, "html rewrite step panicked, skipping", "step", step.Name, "recover", fmt.Sprintf("%v", r))
			}
		}
	}()
	if err := step.Run(ctx); err != nil {
		if log != nil {
			log.WarnCtx(goCtx, "html rewrite step failed, skipping", "step", step.Name, "error", err.Error())
		}
	}
}
