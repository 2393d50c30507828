package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestJPEG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTransformJPEGRecompresses(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, 200, 150)

	tr := &Transformer{}
	res, err := tr.Transform(path, Settings{QualityJPEG: 60, MaxWidth: 1000}, false)
	require.NoError(t, err)
	require.False(t, res.PassThrough)
}

func TestTransformGIFPassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anim.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a"), 0o644))

	tr := &Transformer{}
	res, err := tr.Transform(path, Settings{}, false)
	require.NoError(t, err)
	require.True(t, res.PassThrough)
}

func TestTransformResizeCapsWidth(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, 2000, 1000)

	tr := &Transformer{}
	_, err := tr.Transform(path, Settings{MaxWidth: 800}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.LessOrEqual(t, cfg.Width, 800)
}

func TestPickTierHeroOverridesByPathSubstring(t *testing.T) {
	tier := pickTier("/assets/hero-banner.jpg", false, Settings{})
	require.Equal(t, TierHero, tier)
}

func TestPickTierRespectsSettingsOverride(t *testing.T) {
	tier := pickTier("/assets/hero.jpg", false, Settings{QualityJPEG: 50})
	require.Equal(t, 50, tier.JPEG)
}

func TestOptimizeSVGStripsCommentsAndDimensions(t *testing.T) {
	src := `<svg width="100" height="50" viewBox="0 0 100 50"><!-- comment --><circle r="1"/></svg>`
	out := OptimizeSVG(src)
	require.NotContains(t, out, "comment")
	require.NotContains(t, out, `width="100"`)
	require.Contains(t, out, "viewBox")
}
