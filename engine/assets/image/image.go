// Package image implements the C3 image transformer: per-tier recompress,
// optional modern-format sibling variants, and SVG pass-through-or-optimize.
// Grounded on the teacher's internal/assets optimizer (which the spec's
// quality-tier and threshold rules replace placeholder-percentage shrink
// with real stdlib image codecs) plus the BrowserDriver capability-interface
// idiom from engine/crawler for the formats Go's standard library cannot
// encode natively.
package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"siteforge/engine/models"
)

// Tier is a named quality preset, picked from the asset path or LCP status
// and overridable leaf-wise by user settings (spec §4.3.1 "Quality tiers").
type Tier struct {
	JPEG int
	WebP int
	AVIF int
}

var (
	TierHero      = Tier{JPEG: 88, WebP: 88, AVIF: 60}
	TierStandard  = Tier{JPEG: 75, WebP: 75, AVIF: 45}
	TierThumbnail = Tier{JPEG: 65, WebP: 65, AVIF: 40}
)

// Settings mirrors the image.* schema leaves (engine/settings.DefaultSchema).
type Settings struct {
	QualityJPEG    int
	QualityWebP    int
	QualityAVIF    int
	MaxWidth       int
	Breakpoints    []int
	Effort         int
	StripMetadata  bool
	ConvertWebp    bool
	ConvertAvif    bool
	KeepOriginal   bool
	OptimizeSVG    bool
}

// Encoder is the pluggable capability for formats the Go standard library
// cannot encode (WebP, AVIF). Like crawler.BrowserDriver, it is treated as
// an external collaborator; a concrete codec is wired in at the process
// edge. When absent, the corresponding variant is simply not produced.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// Transformer runs the per-asset image pipeline.
type Transformer struct {
	WebP Encoder
	AVIF Encoder
}

// Result is what one image transform produced.
type Result struct {
	Overwrote    bool
	NewSize      int64
	Variants     []models.AssetVariant
	PassThrough  bool
}

// pickTier derives the quality tier from the path substring or LCP flag,
// then lets Settings override leaf-wise (spec §4.3.1).
func pickTier(path string, isLCP bool, s Settings) Tier {
	tier := TierStandard
	lower := strings.ToLower(path)
	switch {
	case isLCP, strings.Contains(lower, "hero"), strings.Contains(lower, "banner"):
		tier = TierHero
	case strings.Contains(lower, "thumb"), strings.Contains(lower, "icon"):
		tier = TierThumbnail
	}
	if s.QualityJPEG > 0 {
		tier.JPEG = s.QualityJPEG
	}
	if s.QualityWebP > 0 {
		tier.WebP = s.QualityWebP
	}
	if s.QualityAVIF > 0 {
		tier.AVIF = s.QualityAVIF
	}
	return tier
}

// Transform implements the full §4.3.1 algorithm for one asset on disk.
func (t *Transformer) Transform(path string, s Settings, isLCP bool) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".svg" {
		return t.transformSVG(path, s)
	}
	if ext == ".gif" || ext == ".ico" {
		return Result{PassThrough: true}, nil
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return Result{PassThrough: true}, fmt.Errorf("read %s: %w", path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return Result{PassThrough: true}, fmt.Errorf("decode %s: %w", path, err)
	}

	tier := pickTier(path, isLCP, s)
	resized := resizeToMax(img, s.MaxWidth)

	var recompressed []byte
	switch format {
	case "jpeg":
		recompressed, err = encodeJPEG(resized, tier.JPEG)
	case "png":
		recompressed, err = encodePNG(resized, isLCP)
	default:
		recompressed = original
	}
	if err != nil || len(recompressed) == 0 {
		return Result{PassThrough: true}, err
	}

	res := Result{}
	threshold := 0.95
	if isLCP {
		threshold = 1.0
	}
	if float64(len(recompressed)) < float64(len(original))*threshold {
		if err := os.WriteFile(path, recompressed, 0o644); err == nil {
			res.Overwrote = true
			res.NewSize = int64(len(recompressed))
		}
	} else {
		res.NewSize = int64(len(original))
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))

	if s.ConvertWebp && t.WebP != nil {
		if data, err := t.WebP.Encode(resized, tier.WebP); err == nil {
			variantPath := base + ".webp"
			if err := os.WriteFile(variantPath, data, 0o644); err == nil {
				res.Variants = append(res.Variants, models.AssetVariant{RelPath: variantPath, Format: "webp", Width: resized.Bounds().Dx()})
			}
		}
	}
	if s.ConvertAvif && t.AVIF != nil {
		if data, err := t.AVIF.Encode(resized, tier.AVIF); err == nil && float64(len(data)) < float64(len(original))*0.70 {
			variantPath := base + ".avif"
			if err := os.WriteFile(variantPath, data, 0o644); err == nil {
				res.Variants = append(res.Variants, models.AssetVariant{RelPath: variantPath, Format: "avif", Width: resized.Bounds().Dx()})
			}
		}
	}

	srcWidth := img.Bounds().Dx()
	for _, bp := range s.Breakpoints {
		if bp >= srcWidth {
			continue
		}
		scaled := resizeToMax(img, bp)
		if s.ConvertWebp && t.WebP != nil {
			if data, err := t.WebP.Encode(scaled, tier.WebP); err == nil {
				variantPath := fmt.Sprintf("%s-%dw.webp", base, bp)
				if err := os.WriteFile(variantPath, data, 0o644); err == nil {
					res.Variants = append(res.Variants, models.AssetVariant{RelPath: variantPath, Format: "webp", Width: bp})
				}
			}
		}
	}

	return res, nil
}

func resizeToMax(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if maxWidth <= 0 || srcW <= maxWidth {
		return img
	}
	newW := maxWidth
	newH := int(math.Round(float64(srcH) * float64(newW) / float64(srcW)))
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image, lcp bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Transformer) transformSVG(path string, s Settings) (Result, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return Result{PassThrough: true}, err
	}
	if !s.OptimizeSVG {
		return Result{PassThrough: true}, nil
	}
	optimized := OptimizeSVG(string(original))
	if len(optimized) < len(original) {
		if err := os.WriteFile(path, []byte(optimized), 0o644); err == nil {
			return Result{Overwrote: true, NewSize: int64(len(optimized))}, nil
		}
	}
	return Result{PassThrough: true, NewSize: int64(len(original))}, nil
}
