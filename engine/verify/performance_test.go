package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPerformanceProbeScoresLightPageAt100(t *testing.T) {
	probe := DefaultPerformanceProbe{}
	score, err := probe.Score(context.Background(), "/a", 10_000, 50_000)
	require.NoError(t, err)
	require.Equal(t, 100, score)
}

func TestDefaultPerformanceProbeScoresHeavyPageAtFloor(t *testing.T) {
	probe := DefaultPerformanceProbe{}
	score, err := probe.Score(context.Background(), "/a", 50_000, 3_000_000)
	require.NoError(t, err)
	require.Equal(t, performanceFloor, score)
}

func TestDefaultPerformanceProbeScalesBetweenThresholds(t *testing.T) {
	probe := DefaultPerformanceProbe{}
	score, err := probe.Score(context.Background(), "/a", 0, 1_000_000)
	require.NoError(t, err)
	require.True(t, score > performanceFloor && score < 100)
}

func TestScorePagesUsesDefaultProbeWhenNil(t *testing.T) {
	pages := map[string]int{"/a": 10_000}
	results := ScorePages(context.Background(), nil, pages, nil)
	require.Len(t, results, 1)
	require.Equal(t, 100, results[0].Score)
}
