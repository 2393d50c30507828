// Command siteforge is the CLI wrapper around the optimization engine: it
// wires C1-C9 together, serves the control-plane HTTP surface, and exits
// with the codes spec.md §6 defines (0 success, 2 validation error, 3 build
// failure, 4 verification failure, 5 aborted, 1 other). Flag handling and
// signal-driven graceful shutdown follow the teacher CLI's shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"siteforge/engine/agent"
	"siteforge/engine/crawler"
	"siteforge/engine/events"
	"siteforge/engine/models"
	"siteforge/engine/pipeline"
	"siteforge/engine/settings"
	"siteforge/engine/store"
	"siteforge/engine/telemetry/logging"
	"siteforge/engine/telemetry/metrics"
	"siteforge/engine/verify"
	"siteforge/httpapi"

	"siteforge/engine/queue"
)

const (
	exitOK            = 0
	exitOther         = 1
	exitValidation    = 2
	exitBuildFailure  = 3
	exitVerifyFailure = 4
	exitAborted       = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		httpAddr     string
		metricsAddr  string
		masterKey    string
		pgDSN        string
		anthropicKey string
		model        string
		checkpointDir string
		cacheCap     int
		buildOnce    string
		redisAddr    string
		redisChannel string
	)
	flag.StringVar(&httpAddr, "addr", ":8080", "control-plane HTTP listen address")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus /metrics listen address (disabled if empty)")
	flag.StringVar(&masterKey, "master-key", os.Getenv("SITEFORGE_MASTER_KEY"), "control-plane auth key (X-Master-Key)")
	flag.StringVar(&pgDSN, "postgres-dsn", os.Getenv("SITEFORGE_POSTGRES_DSN"), "Postgres DSN; in-memory store used if empty")
	flag.StringVar(&anthropicKey, "anthropic-key", os.Getenv("ANTHROPIC_API_KEY"), "Anthropic API key for the planner/reviewer advisor")
	flag.StringVar(&model, "anthropic-model", "claude-sonnet-4-5", "Anthropic model id the advisor calls")
	flag.StringVar(&checkpointDir, "checkpoint-dir", "./siteforge-checkpoints", "spill directory for evicted in-memory agent checkpoints")
	flag.IntVar(&cacheCap, "checkpoint-cache", 64, "max AgentRun checkpoints held in memory before spilling to disk")
	flag.StringVar(&buildOnce, "build-once", "", "run a single synchronous AgentRun against this origin URL and exit, instead of serving the control plane")
	flag.StringVar(&redisAddr, "redis-addr", os.Getenv("SITEFORGE_REDIS_ADDR"), "Redis address for the shared event bus; in-process bus used if empty (single control-plane replica only)")
	flag.StringVar(&redisChannel, "redis-channel", "siteforge:events", "Redis Pub/Sub channel the event bus fans events through")
	flag.Parse()

	logger := logging.New(slog.Default())
	schema := settings.DefaultSchema()

	var st store.Store
	if pgDSN != "" {
		pg, err := store.NewPGStore(context.Background(), pgDSN)
		if err != nil {
			log.Printf("connect postgres: %v", err)
			return exitOther
		}
		st = pg
	} else {
		st = store.NewMemStore()
	}
	defer st.Close()

	var metricsProvider metrics.Provider = metrics.NoopProvider{}
	var promProvider *metrics.PrometheusProvider
	if metricsAddr != "" {
		promProvider = metrics.NewPrometheusProvider()
		metricsProvider = promProvider
	}
	var bus events.Bus = events.NewBus(metricsProvider)
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		bus = events.NewRedisBus(context.Background(), rdb, redisChannel)
	}

	registry := agent.NewRegistry()
	checkpoints, err := agent.NewCheckpointStore(agent.CheckpointConfig{CacheCapacity: cacheCap, SpillDirectory: checkpointDir})
	if err != nil {
		log.Printf("init checkpoint store: %v", err)
		return exitOther
	}

	advisor := agent.NewClaudeAdvisor(anthropic.Model(model), option.WithAPIKey(anthropicKey))

	crawl := crawler.New(crawler.FetchPolicy{
		Timeout:      30 * time.Second,
		RequestDelay: 200 * time.Millisecond,
		MaxRetries:   3,
		UserAgent:    "siteforge/1.0 (+optimization-agent)",
	}, nil, logger)

	runner := func(ctx context.Context, job queue.Job) ([]pipeline.OptimizedPage, *pipeline.Stats, error) {
		inv := job.Inventory
		if inv == nil {
			activeRun, err := st.GetActiveAgentRunForSite(ctx, job.SiteID)
			if err != nil {
				return nil, nil, fmt.Errorf("no inventory available for site %s: %w", job.SiteID, err)
			}
			inv = activeRun.Checkpoint.Inventory
		}
		return pipeline.Optimize(ctx, inv, job.Options)
	}
	dispatcher := queue.New(st, bus, runner, 8)

	verifyOpts := verify.VerdictOptions{
		PageSpeedEnabled:     false,
		HardPassPageSpeedMin: 85,
		SoftPassPageSpeedMin: 75,
		SoftPassAvgPerfMin:   80,
	}

	newRunner := func(siteID string) *agent.Controller {
		return &agent.Controller{
			Schema:      schema,
			Checkpoints: checkpoints,
			Bus:         bus,
			Log:         logger,
			Crawler:     crawl,
			Builds:      dispatcher,
			Verifier:    &verify.EdgeRunner{HTTPTimeout: 10 * time.Second},
			Advisor:     advisor,
		}
	}

	if buildOnce != "" {
		return runOnce(context.Background(), st, registry, newRunner, verifyOpts, buildOnce)
	}

	server := httpapi.NewServer(httpAddr, httpapi.Deps{
		Store:      st,
		Schema:     schema,
		Registry:   registry,
		Bus:        bus,
		Log:        logger,
		MasterKey:  masterKey,
		NewRunner:  newRunner,
		VerifyOpts: verifyOpts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received; shutting down control plane...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(exitAborted)
	}()

	if metricsAddr != "" && promProvider != nil {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promProvider.MetricsHandler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				<-ctx.Done()
				_ = srv.Shutdown(context.Background())
			}()
			log.Printf("metrics listening on %s", metricsAddr)
			_ = srv.ListenAndServe()
		}()
	}

	log.Printf("siteforge control plane listening on %s", httpAddr)
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Printf("control plane exited: %v", err)
		return exitOther
	}
	return exitOK
}

// runOnce drives a single AgentRun to completion against originURL and maps
// its outcome to spec.md §6's CLI exit codes, for scripted/CI invocation
// without standing up the control plane.
func runOnce(ctx context.Context, st store.Store, registry *agent.Registry, newRunner func(string) *agent.Controller, vo verify.VerdictOptions, originURL string) int {
	site := &models.Site{ID: uuid.NewString(), OriginURL: originURL, Overrides: models.Settings{}, Lifecycle: "active"}
	if err := st.PutSite(ctx, site); err != nil {
		log.Printf("persist site: %v", err)
		return exitOther
	}

	runID := uuid.NewString()
	if err := registry.Start(site.ID, runID); err != nil {
		log.Printf("start run: %v", err)
		return exitOther
	}
	defer registry.Finish(site.ID, runID)

	run := &models.AgentRun{ID: runID, SiteID: site.ID, Status: models.AgentRunning, WorkDir: workDirFor(runID)}
	if err := st.PutAgentRun(ctx, run); err != nil {
		log.Printf("persist run: %v", err)
		return exitOther
	}

	controller := newRunner(site.ID)
	runErr := controller.Run(ctx, run, site, vo)
	_ = st.PutAgentRun(context.Background(), run)

	return classifyOutcome(run, runErr)
}

func classifyOutcome(run *models.AgentRun, err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitAborted
	}
	if len(run.Checkpoint.IterationHistory) > 0 {
		last := run.Checkpoint.IterationHistory[len(run.Checkpoint.IterationHistory)-1]
		if last.Verdict == "failed" {
			return exitVerifyFailure
		}
	}
	if strings.Contains(run.LastError, "validation") {
		return exitValidation
	}
	if strings.Contains(run.LastError, "build") {
		return exitBuildFailure
	}
	return exitOther
}

func workDirFor(runID string) string {
	return "/var/lib/siteforge/runs/" + runID
}
