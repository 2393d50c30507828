// Package queue implements C9: single-writer-per-site FIFO build dispatch
// feeding the pipeline orchestrator (C5). One goroutine per site drains
// that site's job channel in submission order, so two builds for the same
// site never run concurrently (spec.md §5 "Single-writer discipline");
// builds for different sites proceed fully in parallel.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/pipeline"
	"siteforge/engine/store"
)

// Job is one build request enqueued against a site.
type Job struct {
	SiteID    string
	Inventory *models.SiteInventory
	Options   pipeline.Options
}

// Runner executes a Job against C5. The default wiring is
// pipeline.Optimize; tests substitute a stub.
type Runner func(ctx context.Context, job Job) ([]pipeline.OptimizedPage, *pipeline.Stats, error)

// Dispatcher is the in-process build queue: one FIFO worker per site.
type Dispatcher struct {
	store  store.Store
	bus    events.Bus
	run    Runner
	jobBuf int

	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	jobs chan Job
}

// New builds a Dispatcher. jobBuf bounds how many builds can be queued
// ahead of the currently-running one per site before Enqueue blocks.
func New(st store.Store, bus events.Bus, run Runner, jobBuf int) *Dispatcher {
	if jobBuf <= 0 {
		jobBuf = 8
	}
	return &Dispatcher{store: st, bus: bus, run: run, jobBuf: jobBuf, lanes: make(map[string]*lane)}
}

// Enqueue appends job to its site's FIFO lane, starting the lane's worker
// goroutine on first use, and returns the new Build's id immediately
// (spec.md §4.7 step 3 "enqueue a Build in C9 and wait").
func (d *Dispatcher) Enqueue(ctx context.Context, siteID string, settings models.Settings) (string, error) {
	buildID := uuid.NewString()
	build := &models.Build{
		ID:              buildID,
		SiteID:          siteID,
		Trigger:         "agent",
		Status:          models.BuildQueued,
		EffectiveConfig: settings,
		CreatedAt:       time.Now(),
	}
	if err := d.store.PutBuild(ctx, build); err != nil {
		return "", fmt.Errorf("persist queued build: %w", err)
	}

	d.publish(siteID, buildID, "build_queued", nil)
	l := d.laneFor(siteID)
	l.jobs <- Job{SiteID: siteID, Options: buildOptions(siteID, buildID, settings)}
	return buildID, nil
}

// EnqueueJob is Enqueue's full form for callers that already hold the crawl inventory and pipeline Options needed by C5.
func (d *Dispatcher) EnqueueJob(ctx context.Context, job Job) (string, error) {
	buildID := job.Options.BuildID
	if buildID == "" {
		buildID = uuid.NewString()
		job.Options.BuildID = buildID
	}
	build := &models.Build{
		ID:              buildID,
		SiteID:          job.SiteID,
		Trigger:         "agent",
		Status:          models.BuildQueued,
		EffectiveConfig: job.Options.Settings,
		CreatedAt:       time.Now(),
	}
	if err := d.store.PutBuild(ctx, build); err != nil {
		return "", fmt.Errorf("persist queued build: %w", err)
	}

	d.publish(job.SiteID, buildID, "build_queued", nil)
	l := d.laneFor(job.SiteID)
	l.jobs <- job
	return buildID, nil
}

// Await blocks until buildID finishes or timeout elapses, then returns the
// stored Build. It polls the store rather than holding a bespoke
// completion channel across process boundaries, since a PGStore-backed
// deployment may have the queue and the waiting agent in different
// processes.
func (d *Dispatcher) Await(ctx context.Context, buildID string, timeout time.Duration) (*models.Build, error) {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		build, err := d.store.GetBuild(ctx, buildID)
		if err == nil && (build.Status == models.BuildSuccess || build.Status == models.BuildFailed) {
			return build, nil
		}
		if time.Now().After(deadline) {
			return build, fmt.Errorf("timed out waiting for build %s", buildID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) laneFor(siteID string) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lanes[siteID]; ok {
		return l
	}
	l := &lane{jobs: make(chan Job, d.jobBuf)}
	d.lanes[siteID] = l
	go d.drain(siteID, l)
	return l
}

func (d *Dispatcher) drain(siteID string, l *lane) {
	for job := range l.jobs {
		d.runOne(siteID, job)
	}
}

func (d *Dispatcher) runOne(siteID string, job Job) {
	ctx := context.Background()
	buildID := job.Options.BuildID

	build, err := d.store.GetBuild(ctx, buildID)
	if err != nil {
		build = &models.Build{ID: buildID, SiteID: siteID}
	}
	build.Status = models.BuildRunning
	_ = d.store.PutBuild(ctx, build)
	d.publish(siteID, buildID, "build_started", nil)

	pages, stats, err := d.run(ctx, job)
	if err != nil {
		build.Status = models.BuildFailed
		build.Error = err.Error()
		build.FinishedAt = time.Now()
		_ = d.store.PutBuild(ctx, build)
		d.publish(siteID, buildID, "build_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	build.Status = models.BuildSuccess
	build.PagesProcessed = len(pages)
	build.PagesTotal = len(pages)
	build.FinishedAt = time.Now()
	_ = d.store.PutBuild(ctx, build)

	categories := 0
	if stats != nil {
		categories = len(stats.Categories)
	}
	d.publish(siteID, buildID, "build_succeeded", map[string]interface{}{"pages": len(pages), "categories": categories})
}

func (d *Dispatcher) publish(siteID, buildID, eventType string, fields map[string]interface{}) {
	if d.bus == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	_ = d.bus.Publish(events.Event{
		Category: events.CategoryBuild,
		Type:     eventType,
		SiteID:   siteID,
		BuildID:  buildID,
		Fields:   fields,
	})
}

func buildOptions(siteID, buildID string, settings models.Settings) pipeline.Options {
	return pipeline.Options{SiteID: siteID, BuildID: buildID, Settings: settings}
}
