package verify

import (
	"context"

	"siteforge/engine/models"
)

// FunctionalReplayAll replays every recorded interactive element per page
// against the live edge and compares the observed behavior string to the
// one recorded during the crawl's baseline capture (spec §4.6
// "Functional").
func FunctionalReplayAll(ctx context.Context, interactive map[string][]models.InteractiveElement, replay FunctionalReplay) []models.FunctionalResult {
	var out []models.FunctionalResult
	if replay == nil {
		return out
	}
	for pageURL, elements := range interactive {
		for _, el := range elements {
			observed, err := replay(ctx, el)
			if err != nil {
				out = append(out, models.FunctionalResult{
					PageURL:         pageURL,
					Behavior:        el.Behavior,
					Passed:          false,
					FailedAssertion: err.Error(),
				})
				continue
			}
			passed := observed == el.Behavior
			res := models.FunctionalResult{PageURL: pageURL, Behavior: el.Behavior, Passed: passed}
			if !passed {
				res.FailedAssertion = "expected behavior " + el.Behavior + ", observed " + observed
			}
			out = append(out, res)
		}
	}
	return out
}
