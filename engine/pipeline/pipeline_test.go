package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/settings"
	"siteforge/engine/telemetry/metrics"
)

func writeAsset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptimizeRunsAllPhasesAndWritesOutputTree(t *testing.T) {
	workDir := t.TempDir()
	assetsDir := filepath.Join(workDir, "assets")
	require.NoError(t, os.MkdirAll(assetsDir, 0o755))

	cssPath := writeAsset(t, assetsDir, "style.css", ".hero{color:red}\n.unused{color:blue}\n")
	jsPath := writeAsset(t, assetsDir, "app.js", "console.log('hi');\nfunction f(){debugger;}\n")

	inv := &models.SiteInventory{
		Pages: []models.CrawledPage{
			{
				URLPath: "/",
				RawHTML: `<html><head><link rel="stylesheet" href="style.css"></head><body><script src="app.js"></script><img src="hero.png"></body></html>`,
				CoverageCSS: map[string][]string{"style.css": {".hero"}},
			},
		},
		Assets: map[string]models.Asset{
			"https://example.com/style.css": {SourceURL: "https://example.com/style.css", LocalPath: cssPath, Class: models.AssetCSS},
			"https://example.com/app.js":    {SourceURL: "https://example.com/app.js", LocalPath: jsPath, Class: models.AssetJS},
		},
	}

	schema := settings.DefaultSchema()
	tree := settings.DefaultsTree(schema)
	bus := events.NewBus(metrics.NoopProvider{})

	opts := Options{
		SiteID:    "site1",
		BuildID:   "build1",
		OriginURL: "https://example.com",
		WorkDir:   workDir,
		Settings:  tree,
		Bus:       bus,
	}

	pages, stats, err := Optimize(context.Background(), inv, opts)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.NotNil(t, stats)
	require.Contains(t, stats.Categories, "css")
	require.Contains(t, stats.Categories, "js")

	outHTML, err := os.ReadFile(filepath.Join(workDir, "output", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(outHTML), ".css")

	headers, err := os.ReadFile(filepath.Join(workDir, "output", "_headers"))
	require.NoError(t, err)
	require.Contains(t, string(headers), "Cache-Control")
	require.Contains(t, string(headers), "X-Frame-Options")
}

func TestOptimizeIsolatesPerPageRewriteFailureAndStillWrites(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "assets"), 0o755))

	inv := &models.SiteInventory{
		Pages: []models.CrawledPage{
			{URLPath: "/a", RawHTML: `<html><body>ok</body></html>`},
		},
		Assets: map[string]models.Asset{},
	}

	schema := settings.DefaultSchema()
	tree := settings.DefaultsTree(schema)

	opts := Options{OriginURL: "https://example.com", WorkDir: workDir, Settings: tree}
	pages, _, err := Optimize(context.Background(), inv, opts)
	require.NoError(t, err)
	require.Len(t, pages, 1)
}
