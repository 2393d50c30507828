package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeOutputTree mirrors each optimized page to
// workDir/output/<path>/index.html and copies the asset tree to
// workDir/output/assets/ (spec §4.5 phase 5, §6 output tree layout).
func writeOutputTree(workDir string, pages []OptimizedPage) error {
	outputDir := filepath.Join(workDir, "output")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	for _, p := range pages {
		dir := filepath.Join(outputDir, strings.Trim(p.URLPath, "/"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(p.HTML), 0o644); err != nil {
			return err
		}
	}
	return copyAssetTree(filepath.Join(workDir, "assets"), filepath.Join(outputDir, "assets"))
}

func copyAssetTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := copyAssetTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// writeHeaders emits the _headers manifest (spec §6 "_headers format"):
// cache-control per duration category plus the configured security headers.
func writeHeaders(workDir string, h headerConfig) error {
	var b strings.Builder

	fmt.Fprintf(&b, "/*.html\n  Cache-Control: %s\n", h.HTMLCacheControl)
	fmt.Fprintf(&b, "/assets/*-*.css\n  Cache-Control: public,max-age=31536000,immutable\n")
	fmt.Fprintf(&b, "/assets/*-*.js\n  Cache-Control: public,max-age=31536000,immutable\n")
	fmt.Fprintf(&b, "/assets/*.webp\n  Cache-Control: public,max-age=31536000,immutable\n")
	fmt.Fprintf(&b, "/assets/*.avif\n  Cache-Control: public,max-age=31536000,immutable\n")
	fmt.Fprintf(&b, "/assets/*.woff2\n  Cache-Control: %s\n", h.FontsCacheControl)
	fmt.Fprintf(&b, "/favicon.ico\n  Cache-Control: %s\n", h.FaviconCacheControl)
	fmt.Fprintf(&b, "/*\n  Cache-Control: %s\n", h.UnhashedImagesCacheControl)

	b.WriteString("/*\n")
	if h.SecurityEnabled["nosniff"] {
		b.WriteString("  X-Content-Type-Options: nosniff\n")
	}
	if h.SecurityEnabled["frameOptions"] {
		b.WriteString("  X-Frame-Options: SAMEORIGIN\n")
	}
	if h.SecurityEnabled["hsts"] {
		b.WriteString("  Strict-Transport-Security: max-age=63072000; includeSubDomains; preload\n")
	}
	if h.SecurityEnabled["referrerPolicy"] {
		b.WriteString("  Referrer-Policy: strict-origin-when-cross-origin\n")
	}
	if h.SecurityEnabled["permissionsPolicy"] {
		b.WriteString("  Permissions-Policy: camera=(), microphone=(), geolocation=()\n")
	}
	if h.SecurityEnabled["xssProtection"] {
		b.WriteString("  X-XSS-Protection: 0\n")
	}

	return os.WriteFile(filepath.Join(workDir, "output", "_headers"), []byte(b.String()), 0o644)
}
