package verify

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVisualDiffIdenticalForSameImage(t *testing.T) {
	img := solidPNG(t, color.White)
	results := VisualDiff(map[string][]byte{"/a": img}, map[string][]byte{"/a": img})
	require.Len(t, results, 1)
	require.Equal(t, "identical", results[0].Status)
	require.Equal(t, 1.0, results[0].Score)
}

func TestVisualDiffNeedsReviewForDifferentImage(t *testing.T) {
	base := solidPNG(t, color.White)
	cur := solidPNG(t, color.Black)
	results := VisualDiff(map[string][]byte{"/a": base}, map[string][]byte{"/a": cur})
	require.Len(t, results, 1)
	require.Equal(t, "needs-review", results[0].Status)
}

func TestVisualDiffFailsWhenBaselineMissing(t *testing.T) {
	cur := solidPNG(t, color.White)
	results := VisualDiff(map[string][]byte{}, map[string][]byte{"/a": cur})
	require.Len(t, results, 1)
	require.Equal(t, "failed", results[0].Status)
}

func TestVerdictPassesWhenAllProbesClean(t *testing.T) {
	report := &Report{
		Visual:     []models.VisualResult{{PageURL: "/a", Status: "identical", Score: 1}},
		Functional: []models.FunctionalResult{{PageURL: "/a", Passed: true}},
		Links:      []models.LinkResult{{URL: "https://example.com", Ok: true, StatusCode: 200}},
		Performance: []models.PerformanceResult{{PageURL: "/a", Score: 95}},
	}
	verdict := Verdict(report, VerdictOptions{PageSpeedEnabled: false})
	require.Equal(t, "pass", verdict)
}

func TestVerdictFailsOnBrokenLink(t *testing.T) {
	report := &Report{
		Visual: []models.VisualResult{{PageURL: "/a", Status: "identical"}},
		Links:  []models.LinkResult{{URL: "https://example.com/dead", Ok: false, StatusCode: 404}},
	}
	verdict := Verdict(report, VerdictOptions{})
	require.Equal(t, "failed", verdict)
}

func TestVerdictIncompleteOnSoftPassPageSpeed(t *testing.T) {
	report := &Report{
		Visual:      []models.VisualResult{{PageURL: "/a", Status: "acceptable"}},
		Functional:  []models.FunctionalResult{{PageURL: "/a", Passed: true}},
		Links:       []models.LinkResult{{URL: "https://example.com", Ok: true}},
		Performance: []models.PerformanceResult{{PageURL: "/a", Score: 85}},
		PageSpeed:   map[string]int{"/a": 78},
	}
	opts := VerdictOptions{
		PageSpeedEnabled:     true,
		HardPassPageSpeedMin: 85,
		SoftPassPageSpeedMin: 75,
		SoftPassAvgPerfMin:   80,
	}
	require.Equal(t, "incomplete", Verdict(report, opts))
}
