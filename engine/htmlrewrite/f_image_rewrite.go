package htmlrewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stepImageRewrite wraps raster <img> tags in <picture>, emits AVIF/WebP
// <source> candidates and a breakpoint srcset, and marks the first k images
// as LCP candidates (spec §4.4 step f).
func stepImageRewrite(ctx *Context) error {
	s := ctx.Settings
	lcpBudget := s.LCPCandidateCount
	if lcpBudget <= 0 {
		lcpBudget = 3
	}
	lcpSeen := 0

	ctx.Doc.Find("img[src]").Each(func(i int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if !isRasterImage(src) {
			return
		}

		isLCP := false
		if s.LCPMode == "manual" && s.LCPSelector != "" {
			isLCP = img.Is(s.LCPSelector)
		} else if lcpSeen < lcpBudget {
			isLCP = true
		}
		if isLCP {
			lcpSeen++
			img.SetAttr("fetchpriority", "high")
			img.SetAttr("loading", "eager")
		} else if s.LazyLoad {
			img.SetAttr("loading", "lazy")
			img.SetAttr("decoding", "async")
		}

		srcset := buildSrcset(src, s.ImageBreakpoints)
		if srcset != "" {
			img.SetAttr("srcset", srcset)
			img.SetAttr("sizes", "(max-width: 768px) 100vw, 768px")
		}

		sources := buildPictureSources(src, ctx.ImageVariants[src])
		if len(sources) == 0 {
			return
		}

		pictureOpen := "<picture>"
		pictureClose := "</picture>"
		imgHTML, err := goquery.OuterHtml(img)
		if err != nil {
			return
		}
		replacement := pictureOpen + strings.Join(sources, "") + imgHTML + pictureClose
		img.ReplaceWithHtml(replacement)
	})
	return nil
}

func isRasterImage(src string) bool {
	lower := strings.ToLower(src)
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		if strings.HasSuffix(strings.SplitN(lower, "?", 2)[0], ext) {
			return true
		}
	}
	return false
}

func buildSrcset(src string, breakpoints []int) string {
	if len(breakpoints) == 0 {
		return ""
	}
	base := strings.TrimSuffix(src, extOf(src))
	var parts []string
	for _, bp := range breakpoints {
		parts = append(parts, fmt.Sprintf("%s-%dw%s %dw", base, bp, extOf(src), bp))
	}
	return strings.Join(parts, ", ")
}

// buildPictureSources only emits a <source> for a format that was actually
// written to disk during the images phase (v.AVIF/v.WebP) — the settings
// flags (s.ConvertAvif/s.ConvertWebp) control whether the images phase
// *attempts* a conversion, not whether step f may reference one.
func buildPictureSources(src string, v ImageVariant) []string {
	base := strings.TrimSuffix(src, extOf(src))
	var sources []string
	if v.AVIF {
		sources = append(sources, fmt.Sprintf(`<source type="image/avif" srcset="%s.avif">`, base))
	}
	if v.WebP {
		sources = append(sources, fmt.Sprintf(`<source type="image/webp" srcset="%s.webp">`, base))
	}
	return sources
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
