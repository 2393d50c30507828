package pipeline

import (
	"siteforge/engine/assets/css"
	"siteforge/engine/assets/image"
	"siteforge/engine/assets/js"
	"siteforge/engine/htmlrewrite"
	"siteforge/engine/models"
	"siteforge/engine/settings"
)

var schema = settings.DefaultSchema()

func flat(tree models.Settings) map[string]any {
	return settings.Flatten(schema, tree)
}

func getBool(m map[string]any, path string, def bool) bool {
	if v, ok := m[path]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func getInt(m map[string]any, path string, def int) int {
	if v, ok := m[path]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func getString(m map[string]any, path string, def string) string {
	if v, ok := m[path]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func getStringList(m map[string]any, path string) []string {
	v, ok := m[path]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func getIntList(m map[string]any, path string) []int {
	strs := getStringList(m, path)
	out := make([]int, 0, len(strs))
	for _, s := range strs {
		n := 0
		for _, c := range s {
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		if n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func imageSettings(m map[string]any) image.Settings {
	return image.Settings{
		QualityJPEG:   getInt(m, "image.quality.jpeg", 75),
		QualityWebP:   getInt(m, "image.quality.webp", 75),
		QualityAVIF:   getInt(m, "image.quality.avif", 45),
		MaxWidth:      getInt(m, "image.maxWidth", 1920),
		Breakpoints:   getIntList(m, "image.breakpoints"),
		Effort:        getInt(m, "image.effort", 4),
		StripMetadata: getBool(m, "image.stripMetadata", true),
		ConvertWebp:   getBool(m, "image.convertWebp", true),
		ConvertAvif:   getBool(m, "image.convertAvif", true),
		KeepOriginal:  getBool(m, "image.keepOriginal", true),
		OptimizeSVG:   getBool(m, "image.optimizeSvg", true),
	}
}

func cssSettings(m map[string]any) css.Settings {
	return css.Settings{
		Purge:               getBool(m, "css.purge", true),
		PurgeAggressiveness: css.Aggressiveness(getString(m, "css.purgeAggressiveness", "safe")),
		MinifyPreset:        css.MinifyPreset(getString(m, "css.minifyPreset", "default")),
		Critical:            getBool(m, "css.critical", true),
		FontDisplay:         getString(m, "css.fontDisplay", "swap"),
		CombineStylesheets:  getBool(m, "css.combineStylesheets", false),
	}
}

func jsSettings(m map[string]any) js.Settings {
	return js.Settings{
		Minify:               getBool(m, "js.minify", true),
		TerserPasses:         getInt(m, "js.terserPasses", 2),
		DropConsole:          getBool(m, "js.dropConsole", false),
		DropDebugger:         getBool(m, "js.dropDebugger", true),
		CustomRemovePatterns: getStringList(m, "js.customRemovePatterns"),
		RemoveJquery:         getBool(m, "js.removeJquery", false),
	}
}

func htmlSettings(m map[string]any) htmlrewrite.Settings {
	return htmlrewrite.Settings{
		RemoveGenerator:               getBool(m, "html.removeGenerator", true),
		RemoveRSD:                     getBool(m, "html.removeRSD", true),
		RemoveWlwmanifest:             getBool(m, "html.removeWlwmanifest", true),
		RemoveShortlink:               getBool(m, "html.removeShortlink", true),
		RemoveOembed:                  getBool(m, "html.removeOembed", true),
		RemoveEmojiPrefetch:           getBool(m, "html.removeEmojiPrefetch", true),
		RemovePingback:                getBool(m, "html.removePingback", true),
		LazyLoad:                      getBool(m, "html.lazyLoad", true),
		FacadesEnabled:                getStringList(m, "html.facadesEnabled"),
		PrivacyEnhancedEmbeds:         getBool(m, "html.privacyEnhancedEmbeds", true),
		GoogleMapsFacade:              getBool(m, "html.googleMapsFacade", true),
		MinifierRemoveAttributeQuotes: getBool(m, "html.minifier.removeAttributeQuotes", false),
		MinifierRemoveOptionalTags:    getBool(m, "html.minifier.removeOptionalTags", false),
		MinifierRemoveEmptyElements:   getBool(m, "html.minifier.removeEmptyElements", false),
		MinifierCollapseWhitespace:    getBool(m, "html.minifier.collapseWhitespace", true),
		CLSFixesEnabled:               getBool(m, "html.clsFixesEnabled", true),
		CriticalCSS:                   getBool(m, "css.critical", true),
		SVGSpriteDedup:                getBool(m, "html.svgSpriteDedup", true),
		MaxPreconnects:                getInt(m, "html.maxPreconnects", 4),
		FontPreloadCount:              getInt(m, "html.fontPreloadCount", 3),
		LCPMode:                       getString(m, "image.lcpMode", "auto"),
		LCPSelector:                   getString(m, "image.lcpSelector", ""),
		LCPCandidateCount:             getInt(m, "image.lcpCandidateCount", 3),
		ConvertWebp:                   getBool(m, "image.convertWebp", true),
		ConvertAvif:                   getBool(m, "image.convertAvif", true),
		ImageBreakpoints:              getIntList(m, "image.breakpoints"),
		DeferExceptions:               nil,
	}
}

type headerConfig struct {
	HTMLCacheControl          string
	UnhashedImagesCacheControl string
	FontsCacheControl         string
	FaviconCacheControl       string
	SecurityEnabled           map[string]bool
}

func headerSettings(m map[string]any) headerConfig {
	enabled := map[string]bool{}
	for _, k := range getStringList(m, "headers.security.enabled") {
		enabled[k] = true
	}
	return headerConfig{
		HTMLCacheControl:            getString(m, "headers.html.cacheControl", "public,max-age=600"),
		UnhashedImagesCacheControl:  getString(m, "headers.unhashedImages.cacheControl", "public,max-age=604800"),
		FontsCacheControl:           getString(m, "headers.fonts.cacheControl", "public,max-age=31536000"),
		FaviconCacheControl:         getString(m, "headers.favicon.cacheControl", "public,max-age=86400"),
		SecurityEnabled:             enabled,
	}
}
