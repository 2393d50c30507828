package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siteforge/engine/crawler"
	"siteforge/engine/models"
	"siteforge/engine/settings"
	"siteforge/engine/verify"
)

var errSoftPassShouldNotReview = errors.New("reviewer consulted on a soft pass")

type fakeCrawler struct{ inv *models.SiteInventory }

func (f fakeCrawler) Crawl(_ context.Context, _ crawler.Options) (*models.SiteInventory, error) {
	return f.inv, nil
}

type fakeBuilds struct {
	build *models.Build
	err   error
}

func (f fakeBuilds) Enqueue(_ context.Context, _ string, _ models.Settings) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.build.ID, nil
}

func (f fakeBuilds) Await(_ context.Context, _ string, _ time.Duration) (*models.Build, error) {
	return f.build, nil
}

type fakeVerifier struct {
	report *verify.Report
	err    error
}

func (f fakeVerifier) Verify(_ context.Context, _ *models.Build, _ *models.SiteInventory) (*verify.Report, error) {
	return f.report, f.err
}

type fakeAdvisor struct {
	plan       SettingsPatch
	planErr    error
	review     ReviewVerdict
	reviewErr  error
}

func (f fakeAdvisor) Plan(_ context.Context, _ *models.SiteInventory, _ map[string]int) (SettingsPatch, error) {
	return f.plan, f.planErr
}

func (f fakeAdvisor) Review(_ context.Context, _ models.IterationResult, _ []models.IterationResult) (ReviewVerdict, error) {
	return f.review, f.reviewErr
}

func passingReport() *verify.Report {
	return &verify.Report{
		Visual:      []models.VisualResult{{PageURL: "/", Status: "identical", Score: 1}},
		Functional:  []models.FunctionalResult{{PageURL: "/", Passed: true}},
		Links:       []models.LinkResult{{URL: "https://example.com", Ok: true}},
		Performance: []models.PerformanceResult{{PageURL: "/", Score: 95}},
	}
}

func TestControllerRunCompletesOnFirstIterationPass(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      fakeBuilds{build: &models.Build{ID: "b1", Status: models.BuildSuccess, EdgeURL: "https://edge.example.com"}},
		Verifier:    fakeVerifier{report: passingReport()},
		Advisor:     fakeAdvisor{plan: SettingsPatch{}},
	}

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, verify.VerdictOptions{})
	require.NoError(t, err)
	require.Equal(t, models.AgentCompleted, run.Status)
	require.Equal(t, models.PhaseComplete, run.CurrentPhase)
	require.Len(t, run.Checkpoint.IterationHistory, 1)
	require.Equal(t, "pass", run.Checkpoint.IterationHistory[0].Verdict)
}

func TestControllerRunAppliesSaferSettingsAfterBuildFailureThenPasses(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	builds := &sequencedBuilds{
		results: []buildOutcome{
			{build: &models.Build{ID: "b1", Status: models.BuildFailed, Error: "boom"}},
			{build: &models.Build{ID: "b2", Status: models.BuildSuccess, EdgeURL: "https://edge.example.com"}},
		},
	}

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      builds,
		Verifier:    fakeVerifier{report: passingReport()},
		Advisor:     fakeAdvisor{plan: SettingsPatch{}},
	}

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, verify.VerdictOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, builds.i)
	require.Equal(t, models.AgentCompleted, run.Status)
	require.NotEmpty(t, run.LastError)
}

type buildOutcome struct {
	build *models.Build
}

type sequencedBuilds struct {
	results []buildOutcome
	i       int
}

func (s *sequencedBuilds) Enqueue(_ context.Context, _ string, _ models.Settings) (string, error) {
	return s.results[s.i].build.ID, nil
}

func (s *sequencedBuilds) Await(_ context.Context, _ string, _ time.Duration) (*models.Build, error) {
	b := s.results[s.i].build
	if s.i < len(s.results)-1 {
		s.i++
	}
	return b, nil
}

func TestControllerRunFailsAfterMaxIterationsExhausted(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      fakeBuilds{build: &models.Build{ID: "b1", Status: models.BuildFailed, Error: "always fails"}},
		Verifier:    fakeVerifier{report: passingReport()},
		Advisor:     fakeAdvisor{plan: SettingsPatch{}},
	}

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, verify.VerdictOptions{})
	require.Error(t, err)
	require.Equal(t, models.AgentFailed, run.Status)
}

func TestControllerRunCompletesOnSoftPassWithoutConsultingReviewer(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	softPassReport := &verify.Report{
		Visual:      []models.VisualResult{{PageURL: "/", Status: "acceptable"}},
		Functional:  []models.FunctionalResult{{PageURL: "/", Passed: true}},
		Links:       []models.LinkResult{{URL: "https://example.com", Ok: true}},
		Performance: []models.PerformanceResult{{PageURL: "/", Score: 85}},
		PageSpeed:   map[string]int{"/": 78},
	}

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      fakeBuilds{build: &models.Build{ID: "b1", Status: models.BuildSuccess, EdgeURL: "https://edge.example.com"}},
		Verifier:    fakeVerifier{report: softPassReport},
		// No review should ever be consulted; a non-empty error here would
		// surface as a run failure if step 6 ran.
		Advisor: fakeAdvisor{plan: SettingsPatch{}, reviewErr: errSoftPassShouldNotReview},
	}

	vo := verify.VerdictOptions{
		PageSpeedEnabled:     true,
		HardPassPageSpeedMin: 85,
		SoftPassPageSpeedMin: 75,
		SoftPassAvgPerfMin:   80,
	}

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, vo)
	require.NoError(t, err)
	require.Equal(t, models.AgentCompleted, run.Status)
	require.Len(t, run.Checkpoint.IterationHistory, 1)
	require.Equal(t, "incomplete", run.Checkpoint.IterationHistory[0].Verdict)
}

func TestControllerRunStopsWhenReviewerDeclinesRebuild(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	failingReport := &verify.Report{
		Visual: []models.VisualResult{{PageURL: "/", Status: "needs-review"}},
	}

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      fakeBuilds{build: &models.Build{ID: "b1", Status: models.BuildSuccess}},
		Verifier:    fakeVerifier{report: failingReport},
		Advisor:     fakeAdvisor{plan: SettingsPatch{}, review: ReviewVerdict{ShouldRebuild: false, OverallVerdict: "incomplete"}},
	}

	site := &models.Site{ID: "site1", OriginURL: "https://example.com"}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, verify.VerdictOptions{})
	require.NoError(t, err)
	require.Equal(t, models.AgentCompleted, run.Status)
	require.Equal(t, models.PhaseComplete, run.CurrentPhase)
}

// TestControllerRunRespectsZeroMaxIterationsOverride exercises the
// agent.maxIterations=0 boundary (spec.md §4.7): the loop must never run a
// single iteration once the effective setting caps it at zero, which is
// only observable once the bound is read from settings instead of a fixed
// constant.
func TestControllerRunRespectsZeroMaxIterationsOverride(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	c := &Controller{
		Schema:      settings.DefaultSchema(),
		Checkpoints: store,
		Crawler:     fakeCrawler{inv: &models.SiteInventory{}},
		Builds:      fakeBuilds{build: &models.Build{ID: "b1", Status: models.BuildSuccess, EdgeURL: "https://edge.example.com"}},
		Verifier:    fakeVerifier{report: passingReport()},
		Advisor:     fakeAdvisor{plan: SettingsPatch{}},
	}

	site := &models.Site{
		ID:        "site1",
		OriginURL: "https://example.com",
		Overrides: models.Settings{"agent": models.Settings{"maxIterations": 0}},
	}
	run := &models.AgentRun{ID: "run1", SiteID: "site1"}

	err = c.Run(context.Background(), run, site, verify.VerdictOptions{})
	require.Error(t, err)
	require.Equal(t, models.AgentFailed, run.Status)
	require.Equal(t, 0, run.Iteration)
	require.Empty(t, run.Checkpoint.IterationHistory)
}

func TestControllerRunFailsWhenContextCancelled(t *testing.T) {
	store, err := NewCheckpointStore(CheckpointConfig{})
	require.NoError(t, err)

	c := &Controller{Schema: settings.DefaultSchema(), Checkpoints: store}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &models.AgentRun{ID: "run1", SiteID: "site1"}
	site := &models.Site{ID: "site1"}
	err = c.Run(ctx, run, site, verify.VerdictOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
