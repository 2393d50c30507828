package agent

import (
	"context"
	"fmt"
	"time"

	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/settings"
	"siteforge/engine/telemetry/logging"
	"siteforge/engine/verify"
)

// defaultMaxIterations, defaultPipelineTimeoutMinutes and
// defaultSSLPollMinutes back agent.maxIterations,
// agent.pipelineTimeoutMinutes and agent.sslReadyPollMinutes whenever the
// resolved settings tree has no value for them (schema.go carries the real
// defaults; these cover a Schema that lacks these leaves).
const (
	defaultMaxIterations          = 10
	defaultPipelineTimeoutMinutes = 30
	defaultSSLPollMinutes         = 2
)

// VerifyRunner is the C6 capability the controller invokes once a build
// succeeds; satisfied by verify.EdgeRunner, which builds verify.Options
// from the inventory and calls verify.Run.
type VerifyRunner interface {
	Verify(ctx context.Context, build *models.Build, inventory *models.SiteInventory) (*verify.Report, error)
}

// SSLChecker polls whether the edge URL is serving over TLS yet. Declared
// as a capability interface since the actual check (a bounded HTTP poll
// against the published edge) depends on deployment-specific DNS/CDN
// behavior the spec leaves unspecified.
type SSLChecker interface {
	Ready(ctx context.Context, edgeURL string) (bool, error)
}

// Controller drives one Site's AgentRun through its state machine.
type Controller struct {
	Schema      *settings.Schema
	Checkpoints *CheckpointStore
	Bus         events.Bus
	Log         logging.Logger

	Crawler   Crawler
	Builds    BuildDispatcher
	Verifier  VerifyRunner
	SSL       SSLChecker
	Advisor   AdvisorClient
	PageSpeed PageSpeedClient // nil disables the probe
}

// Run drives run from its current phase to completion or failure,
// persisting a checkpoint after every phase (spec.md §4.7 "Loop"). Each
// pass through the for loop is one numbered step of the spec's 8-step
// iteration; step 8 (safer-settings fallback on error) is handled by
// runIteration returning a non-nil retryable error instead of unwinding the
// whole Run call.
func (c *Controller) Run(ctx context.Context, run *models.AgentRun, site *models.Site, vo verify.VerdictOptions) error {
	run.Status = models.AgentRunning

	flat := settingsFlatten(c.Schema, c.effective(site, run))
	maxIterations := getInt(flat, "agent.maxIterations", defaultMaxIterations)
	pipelineTimeout := time.Duration(getInt(flat, "agent.pipelineTimeoutMinutes", defaultPipelineTimeoutMinutes)) * time.Minute
	sslPollTimeout := time.Duration(getInt(flat, "agent.sslReadyPollMinutes", defaultSSLPollMinutes)) * time.Minute

	for run.Iteration < maxIterations {
		if err := ctx.Err(); err != nil {
			return c.fail(run, err)
		}

		done, verdict, err := c.runIteration(ctx, run, site, vo, pipelineTimeout, sslPollTimeout)
		if err != nil {
			// Step 8: merge the safer-settings patch, advance, and loop.
			run.LastError = err.Error()
			run.Checkpoint.CurrentSettings = settings.ApplySafe(c.effective(site, run))
			run.Iteration++
			c.checkpoint(run, run.CurrentPhase)
			c.publish(run, "iteration_failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		if done {
			return c.complete(run, verdict)
		}
		run.Iteration++
	}

	return c.fail(run, fmt.Errorf("exceeded max iterations (%d)", maxIterations))
}

// runIteration runs steps 1-7 of one iteration and reports whether the run
// is finished (pass, or reviewer declined a rebuild) along with the
// terminal verdict string to record.
func (c *Controller) runIteration(ctx context.Context, run *models.AgentRun, site *models.Site, vo verify.VerdictOptions, pipelineTimeout, sslPollTimeout time.Duration) (done bool, verdict string, err error) {
	// Step 1: crawl once, on the very first iteration only.
	if run.Iteration == 0 && run.Checkpoint.Inventory == nil {
		run.CurrentPhase = models.PhaseAnalyzing
		c.publish(run, "phase_started", nil)
		inv, crawlErr := c.Crawler.Crawl(ctx, c.crawlerOptions(run, site.OriginURL, c.effective(site, run)))
		if crawlErr != nil {
			return false, "", crawlErr
		}
		run.Checkpoint.Inventory = inv
		if c.PageSpeed != nil && inv != nil {
			run.Checkpoint.PageSpeedData = make(map[string]int, len(inv.Pages))
			for _, p := range inv.Pages {
				if score, psErr := c.PageSpeed.Fetch(ctx, p.URLPath); psErr == nil {
					run.Checkpoint.PageSpeedData[p.URLPath] = score
				}
			}
		}
		c.checkpoint(run, models.PhaseAnalyzing)
	}

	// Step 2: ask the planner for a settings patch.
	run.CurrentPhase = models.PhasePlanning
	c.publish(run, "phase_started", nil)
	patch, err := c.Advisor.Plan(ctx, run.Checkpoint.Inventory, run.Checkpoint.PageSpeedData)
	if err != nil {
		return false, "", err
	}
	effective := settings.Merge(c.effective(site, run), patch)
	run.Checkpoint.Plan = patch
	run.Checkpoint.CurrentSettings = effective
	c.checkpoint(run, models.PhasePlanning)

	// Step 3: persist settings, enqueue a build, wait.
	run.CurrentPhase = models.PhaseBuilding
	c.publish(run, "phase_started", nil)
	buildID, err := c.Builds.Enqueue(ctx, site.ID, effective)
	if err != nil {
		return false, "", err
	}
	build, err := c.Builds.Await(ctx, buildID, pipelineTimeout)
	if err != nil || build.Status != models.BuildSuccess {
		return false, "", buildFailure(build, err)
	}
	c.checkpoint(run, models.PhaseBuilding)

	// Step 4: non-fatal SSL readiness poll, then verify.
	if c.SSL != nil {
		c.pollSSL(ctx, build.EdgeURL, sslPollTimeout)
	}
	run.CurrentPhase = models.PhaseVerifying
	c.publish(run, "phase_started", nil)
	report, err := c.Verifier.Verify(ctx, build, run.Checkpoint.Inventory)
	if err != nil {
		return false, "", err
	}
	c.checkpoint(run, models.PhaseVerifying)

	iterVerdict := verify.Verdict(report, vo)
	iteration := models.IterationResult{
		Iteration:   run.Iteration,
		Settings:    effective,
		BuildID:     build.ID,
		EdgeURL:     build.EdgeURL,
		Visual:      report.Visual,
		Functional:  report.Functional,
		Links:       report.Links,
		Performance: report.Performance,
		PageSpeed:   report.PageSpeed,
		Verdict:     iterVerdict,
		CreatedAt:   time.Now(),
	}
	run.Checkpoint.IterationHistory = append(run.Checkpoint.IterationHistory, iteration)

	// Step 5: the pass rule. Hard pass ("pass") and soft pass ("incomplete")
	// both satisfy spec §4.6's "either pass terminates the loop" — only
	// "failed" falls through to the reviewer.
	if iterVerdict == "pass" || iterVerdict == "incomplete" {
		return true, iterVerdict, nil
	}

	// Step 6: ask the reviewer.
	run.CurrentPhase = models.PhaseReviewing
	c.publish(run, "phase_started", nil)
	review, err := c.Advisor.Review(ctx, iteration, run.Checkpoint.IterationHistory)
	if err != nil {
		return false, "", err
	}
	c.checkpoint(run, models.PhaseReviewing)

	if !review.ShouldRebuild {
		return true, review.OverallVerdict, nil
	}

	// Step 7: merge the reviewer's suggested changes and loop.
	run.Checkpoint.CurrentSettings = settings.Merge(run.Checkpoint.CurrentSettings, review.SettingChanges)
	c.checkpoint(run, models.PhaseReviewing)
	return false, "", nil
}

// Resume verifies the run's workDir still exists and calls Run again on the
// checkpointed state. The crawl is skipped because the checkpoint already
// holds the inventory; the interrupted iteration restarts at planning, so
// steps it had already completed are run again.
func Resume(ctx context.Context, c *Controller, runID string, site *models.Site, vo verify.VerdictOptions, workDirExists func(string) bool) (*models.AgentRun, error) {
	cp, ok, err := c.Checkpoints.Load(runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrUnknownRun
	}
	run := &models.AgentRun{ID: runID, SiteID: site.ID, Status: models.AgentRunning, Checkpoint: *cp, CurrentPhase: cp.LastCompletedPhase}
	if !workDirExists(run.WorkDir) {
		return nil, models.ErrCheckpointGone
	}
	return run, c.Run(ctx, run, site, vo)
}

func (c *Controller) effective(site *models.Site, run *models.AgentRun) models.Settings {
	if run.Checkpoint.CurrentSettings != nil {
		return run.Checkpoint.CurrentSettings
	}
	return settings.Resolve(settings.DefaultsTree(c.Schema), site.Overrides)
}

func (c *Controller) pollSSL(ctx context.Context, edgeURL string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ready, err := c.SSL.Ready(ctx, edgeURL)
		if err == nil && ready {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Controller) complete(run *models.AgentRun, verdict string) error {
	run.Status = models.AgentCompleted
	run.CurrentPhase = models.PhaseComplete
	run.LastSuccessfulPhase = models.PhaseReviewing
	c.publish(run, "run_completed", map[string]interface{}{"verdict": verdict})
	c.Checkpoints.Drop(run.ID)
	return nil
}

func (c *Controller) fail(run *models.AgentRun, cause error) error {
	run.Status = models.AgentFailed
	run.CurrentPhase = models.PhaseFailed
	run.LastError = cause.Error()
	c.checkpoint(run, models.PhaseFailed)
	c.publish(run, "run_failed", map[string]interface{}{"error": cause.Error()})
	return cause
}

func (c *Controller) checkpoint(run *models.AgentRun, phase models.AgentPhase) {
	run.Checkpoint.LastCompletedPhase = phase
	run.UpdatedAt = time.Now()
	if c.Checkpoints != nil {
		_ = c.Checkpoints.Save(run.ID, &run.Checkpoint)
	}
}

func (c *Controller) publish(run *models.AgentRun, eventType string, fields map[string]interface{}) {
	if c.Bus == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["phase"] = string(run.CurrentPhase)
	fields["iteration"] = run.Iteration
	_ = c.Bus.Publish(events.Event{
		Category: events.CategoryAgent,
		Type:     eventType,
		SiteID:   run.SiteID,
		Fields:   fields,
	})
}

func buildFailure(build *models.Build, err error) error {
	if err != nil {
		return err
	}
	if build == nil {
		return fmt.Errorf("build dispatcher returned no build")
	}
	return fmt.Errorf("build %s failed: %s", build.ID, build.Error)
}
