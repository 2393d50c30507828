// Package fonts implements the C3.4 font transformer: self-hosting of
// Google-Fonts CSS references and preload-hint selection, grounded on the
// teacher's asset discovery/downloader pattern (internal/assets) adapted
// to font-specific rewriting.
package fonts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"siteforge/engine/telemetry/retry"
)

// Fetcher downloads raw bytes for a CSS or font-face URL. Separated from
// the crawler's asset downloader so fonts can be transformed standalone by
// tests, while production wiring shares one retry.Policy-backed HTTP
// client.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Face is one @font-face declaration discovered in a Google-Fonts stylesheet.
type Face struct {
	FontFamily string
	SourceURL  string // the woff2 URL from the original CSS
	LocalPath  string // assets/fonts/<hash>.woff2 once downloaded
	Data       []byte // the downloaded woff2 bytes, for the caller to persist at LocalPath
}

// Result is the outcome of self-hosting one Google-Fonts CSS reference.
type Result struct {
	RewrittenCSS string
	Faces        []Face
	PreloadFaces []Face // top N faces to <link rel=preload as=font>
}

var fontFaceBlockRE = regexp.MustCompile(`(?s)@font-face\s*\{([^}]*)\}`)
var srcURLRE = regexp.MustCompile(`url\(([^)]+)\)[^,;]*format\('?woff2'?\)`)
var familyRE = regexp.MustCompile(`font-family:\s*'?"?([^;'"]+)'?"?;`)

// SelfHost downloads every woff2 referenced by a Google-Fonts stylesheet,
// rewrites the CSS to point at local paths, and selects up to maxPreload
// faces for preloading (spec §4.3.4).
func SelfHost(ctx context.Context, css string, fetch Fetcher, destDir string, maxPreload int) (Result, error) {
	var faces []Face
	policy := retry.DefaultPolicy()
	rewritten := fontFaceBlockRE.ReplaceAllStringFunc(css, func(block string) string {
		familyMatch := familyRE.FindStringSubmatch(block)
		family := ""
		if len(familyMatch) > 1 {
			family = strings.TrimSpace(familyMatch[1])
		}
		srcMatch := srcURLRE.FindStringSubmatch(block)
		if len(srcMatch) < 2 {
			return block
		}
		rawURL := strings.Trim(srcMatch[1], `'"`)

		var body []byte
		err := retry.Do(ctx, policy, func(int) error {
			b, ferr := fetch(ctx, rawURL)
			if ferr != nil {
				return ferr
			}
			body = b
			return nil
		})
		if err != nil {
			return block
		}

		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])[:12]
		localName := hash + ".woff2"
		localPath := filepath.Join(destDir, localName)
		// The stylesheet itself is written one directory above destDir (e.g.
		// assets/<name>.css next to assets/fonts/<hash>.woff2), so the
		// @font-face url must be relative to destDir's parent, not localPath.
		cssRelURL := filepath.Base(destDir) + "/" + localName

		faces = append(faces, Face{FontFamily: family, SourceURL: rawURL, LocalPath: localPath, Data: body})
		return strings.Replace(block, srcMatch[0], fmt.Sprintf("url(%s) format('woff2')", cssRelURL), 1)
	})

	preloadN := maxPreload
	if preloadN <= 0 || preloadN > 3 {
		preloadN = 3
	}
	if preloadN > len(faces) {
		preloadN = len(faces)
	}

	return Result{RewrittenCSS: rewritten, Faces: faces, PreloadFaces: faces[:preloadN]}, nil
}
