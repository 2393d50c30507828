package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"siteforge/engine/events"
)

// handleBuildLogs implements `GET /builds/{buildId}/logs` (streaming): an
// SSE feed of `{phase}`, `{log: {...}}` and `{complete}` events for one
// build, filtered out of the shared event bus (spec.md §6), grounded on the
// pack's chi SSE handler shape (subscribe, flush per event, close on
// terminal event or client disconnect).
func (s *Server) handleBuildLogs(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildId")
	if buildID == "" {
		writeError(w, http.StatusBadRequest, "missing build id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub, err := s.deps.Bus.Subscribe(64)
	if err != nil {
		return
	}
	defer s.deps.Bus.Unsubscribe(sub)

	sendSSE(w, flusher, map[string]any{"phase": "connected"})

	ctx := r.Context()
	idle := time.NewTimer(60 * time.Second)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			sendSSE(w, flusher, map[string]any{"phase": "timeout"})
			return
		case ev, open := <-sub.C():
			if !open {
				return
			}
			if ev.BuildID != "" && ev.BuildID != buildID {
				continue
			}
			idle.Reset(60 * time.Second)
			payload := buildLogPayload(ev)
			sendSSE(w, flusher, payload)
			if ev.Category == events.CategoryBuild && (ev.Type == "build_succeeded" || ev.Type == "build_failed") {
				sendSSE(w, flusher, map[string]any{"complete": true})
				return
			}
		}
	}
}

func buildLogPayload(ev events.Event) map[string]any {
	level := ev.Severity
	if level == "" {
		level = "info"
		if ev.Category == events.CategoryError {
			level = "error"
		}
	}
	return map[string]any{
		"log": map[string]any{
			"ts":      ev.Time.Format(time.RFC3339),
			"level":   level,
			"phase":   ev.Type,
			"message": ev.Type,
			"meta":    ev.Fields,
		},
	}
}

func sendSSE(w http.ResponseWriter, f http.Flusher, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}
