package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"siteforge/engine/agent"
	"siteforge/engine/models"
	"siteforge/engine/store"
)

// handleStartAgent implements `POST /sites/{id}/agent` -> starts an
// AgentRun and returns its id immediately; the loop itself runs in a
// detached goroutine tracked by runTracker (spec.md §6, §4.7).
func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}

	runID := uuid.NewString()
	if err := s.deps.Registry.Start(site.ID, runID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	run := &models.AgentRun{
		ID:        runID,
		SiteID:    site.ID,
		Status:    models.AgentRunning,
		WorkDir:   workDirFor(runID),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.deps.Store.PutAgentRun(r.Context(), run); err != nil {
		s.deps.Registry.Finish(site.ID, runID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.runs.track(runID, cancel)
	controller := s.deps.NewRunner(site.ID)

	go func() {
		defer s.runs.forget(runID)
		defer s.deps.Registry.Finish(site.ID, runID)
		_ = controller.Run(ctx, run, site, s.deps.VerifyOpts)
		_ = s.deps.Store.PutAgentRun(context.Background(), run)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// handleResumeAgent implements `POST /sites/{id}/agent/{runId}/resume`:
// resumes a failed run, or 409 if its work directory was already garbage
// collected (spec.md §6).
func (s *Server) handleResumeAgent(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	runID := chi.URLParam(r, "runId")

	existing, err := s.deps.Store.GetAgentRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrUnknownRun.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, statErr := os.Stat(existing.WorkDir); statErr != nil {
		writeError(w, http.StatusConflict, "work directory no longer exists; cannot resume")
		return
	}

	if err := s.deps.Registry.Start(site.ID, runID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.runs.track(runID, cancel)
	controller := s.deps.NewRunner(site.ID)
	workDirExists := func(dir string) bool { _, err := os.Stat(dir); return err == nil }

	go func() {
		defer s.runs.forget(runID)
		defer s.deps.Registry.Finish(site.ID, runID)
		run, resumeErr := agent.Resume(ctx, controller, runID, site, s.deps.VerifyOpts, workDirExists)
		if run != nil {
			_ = s.deps.Store.PutAgentRun(context.Background(), run)
		}
		_ = resumeErr
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// handleStopAgent implements `POST /sites/{id}/agent/{runId}/stop`: sets the
// abort flag the controller observes at its next phase boundary or
// iteration edge (spec.md §5 "Cancellation").
func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	if !s.runs.stop(runID) {
		writeError(w, http.StatusNotFound, "run not active on this process")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleGetAgent implements `GET /sites/{id}/agent` -> current state + tail
// logs.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	run, err := s.deps.Store.GetActiveAgentRunForSite(r.Context(), site.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no active run for site")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":     run.ID,
		"status":    run.Status,
		"phase":     run.CurrentPhase,
		"iteration": run.Iteration,
		"lastError": run.LastError,
		"logs":      run.Checkpoint.RecentLogs,
	})
}

func workDirFor(runID string) string {
	return "/var/lib/siteforge/runs/" + runID
}
