package verify

import (
	"context"

	"siteforge/engine/models"
)

// DefaultPerformanceProbe is the deterministic stand-in for a real
// headless-browser timing harness (declared out of scope, same idiom as
// crawler.BrowserDriver). It scores a page purely from the bytes it ships:
// a page under lightweightPageBytes scores perfectly, and every byte past
// that threshold costs score proportionally down to a floor.
type DefaultPerformanceProbe struct{}

const (
	lightweightPageBytes = 150_000
	heavyPageBytes       = 2_000_000
	performanceFloor      = 10
)

func (DefaultPerformanceProbe) Score(_ context.Context, _ string, htmlBytes int, assetBytes int64) (int, error) {
	total := int64(htmlBytes) + assetBytes
	if total <= lightweightPageBytes {
		return 100, nil
	}
	if total >= heavyPageBytes {
		return performanceFloor, nil
	}
	span := heavyPageBytes - lightweightPageBytes
	over := total - lightweightPageBytes
	score := 100 - int(float64(over)/float64(span)*float64(100-performanceFloor))
	if score < performanceFloor {
		score = performanceFloor
	}
	return score, nil
}

// ScorePages runs probe over every page, weighting by HTML size plus the
// total size of assets the page references.
func ScorePages(ctx context.Context, probe PerformanceProbe, pages map[string]int, pageAssetBytes map[string]int64) []models.PerformanceResult {
	if probe == nil {
		probe = DefaultPerformanceProbe{}
	}
	out := make([]models.PerformanceResult, 0, len(pages))
	for pageURL, htmlBytes := range pages {
		score, err := probe.Score(ctx, pageURL, htmlBytes, pageAssetBytes[pageURL])
		if err != nil {
			score = 0
		}
		out = append(out, models.PerformanceResult{PageURL: pageURL, Score: score})
	}
	return out
}
