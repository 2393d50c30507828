package verify

import (
	"context"

	"siteforge/engine/models"
)

// VerdictOptions carries the schema-driven thresholds (settings.schema.go
// verify.* leaves) the hard-pass/soft-pass rule reads.
type VerdictOptions struct {
	PageSpeedEnabled    bool
	HardPassPageSpeedMin int
	SoftPassPageSpeedMin int
	SoftPassAvgPerfMin   int
}

// Verdict implements spec §4.6's iteration rule: "pass" if every probe is
// clean and (when enabled) the PageSpeed composite clears the hard-pass
// bar; "incomplete" if the visual/functional/links probes are clean but
// performance only clears the softer bar; "failed" otherwise.
func Verdict(r *Report, o VerdictOptions) string {
	for _, v := range r.Visual {
		if v.Status != "identical" && v.Status != "acceptable" {
			return "failed"
		}
	}
	for _, f := range r.Functional {
		if !f.Passed {
			return "failed"
		}
	}
	for _, l := range r.Links {
		if !l.Ok {
			return "failed"
		}
	}

	pageSpeedMin := 0
	if o.PageSpeedEnabled {
		pageSpeedMin = minPageSpeed(r.PageSpeed)
	}

	if !o.PageSpeedEnabled || pageSpeedMin >= o.HardPassPageSpeedMin {
		return "pass"
	}
	if pageSpeedMin >= o.SoftPassPageSpeedMin && avgPerformance(r.Performance) >= o.SoftPassAvgPerfMin {
		return "incomplete"
	}
	return "failed"
}

func minPageSpeed(scores map[string]int) int {
	min := 100
	if len(scores) == 0 {
		return 100
	}
	first := true
	for _, v := range scores {
		if first || v < min {
			min = v
			first = false
		}
	}
	return min
}

func avgPerformance(results []models.PerformanceResult) int {
	if len(results) == 0 {
		return 100
	}
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return sum / len(results)
}

// Run executes all four probes plus the optional PageSpeed composite and
// returns the assembled Report. Probes that have no inputs configured
// (e.g. no links, no PageSpeed client) report an empty result rather than
// erroring, so a partially-configured verify pass still produces a usable
// verdict.
func Run(ctx context.Context, o Options) (*Report, error) {
	report := &Report{
		Visual:     VisualDiff(o.Baseline, o.Screenshots),
		Functional: FunctionalReplayAll(ctx, o.Interactive, o.Replay),
		Links:      ProbeLinks(ctx, o.Links, o.HTTPTimeout),
	}

	pages := make(map[string]int, len(o.Screenshots))
	for pageURL := range o.Screenshots {
		pages[pageURL] = 0
	}
	report.Performance = ScorePages(ctx, o.Performance, pages, nil)

	if o.PageSpeed != nil {
		report.PageSpeed = make(map[string]int, len(pages))
		for pageURL := range pages {
			score, err := o.PageSpeed.Fetch(ctx, pageURL)
			if err != nil {
				continue
			}
			report.PageSpeed[pageURL] = score
		}
	}

	return report, nil
}
