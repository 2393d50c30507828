package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func TestFunctionalReplayAllPassesWhenBehaviorMatches(t *testing.T) {
	interactive := map[string][]models.InteractiveElement{
		"/a": {{Selector: "#nav-toggle", Kind: "button", Behavior: "opens-menu"}},
	}
	replay := func(_ context.Context, el models.InteractiveElement) (string, error) {
		return el.Behavior, nil
	}
	results := FunctionalReplayAll(context.Background(), interactive, replay)
	require.Len(t, results, 1)
	require.True(t, results[0].Passed)
}

func TestFunctionalReplayAllFailsOnMismatch(t *testing.T) {
	interactive := map[string][]models.InteractiveElement{
		"/a": {{Selector: "#nav-toggle", Kind: "button", Behavior: "opens-menu"}},
	}
	replay := func(_ context.Context, _ models.InteractiveElement) (string, error) {
		return "does-nothing", nil
	}
	results := FunctionalReplayAll(context.Background(), interactive, replay)
	require.Len(t, results, 1)
	require.False(t, results[0].Passed)
	require.NotEmpty(t, results[0].FailedAssertion)
}

func TestFunctionalReplayAllReportsReplayError(t *testing.T) {
	interactive := map[string][]models.InteractiveElement{
		"/a": {{Selector: "#form", Kind: "form", Behavior: "submits"}},
	}
	replay := func(_ context.Context, _ models.InteractiveElement) (string, error) {
		return "", errors.New("element not found")
	}
	results := FunctionalReplayAll(context.Background(), interactive, replay)
	require.Len(t, results, 1)
	require.False(t, results[0].Passed)
	require.Equal(t, "element not found", results[0].FailedAssertion)
}

func TestFunctionalReplayAllReturnsEmptyWithoutReplayer(t *testing.T) {
	interactive := map[string][]models.InteractiveElement{"/a": {{Selector: "#x"}}}
	results := FunctionalReplayAll(context.Background(), interactive, nil)
	require.Empty(t, results)
}
