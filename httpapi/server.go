// Package httpapi implements the control-plane HTTP surface (spec.md §6):
// settings CRUD, agent run lifecycle, and a build log SSE stream, fronted by
// go-chi/chi and protected by a master-key header. Grounded on the
// kubernaut-adjacent pack's chi gateway style (middleware stack, JSON
// envelope helpers) generalized to siteforge's domain.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"siteforge/engine/agent"
	"siteforge/engine/events"
	"siteforge/engine/settings"
	"siteforge/engine/store"
	"siteforge/engine/telemetry/logging"
	"siteforge/engine/verify"
)

// Deps bundles every collaborator the HTTP surface needs; Server holds no
// state of its own beyond these and the in-flight run registry.
type Deps struct {
	Store      store.Store
	Schema     *settings.Schema
	Registry   *agent.Registry
	Bus        events.Bus
	Log        logging.Logger
	MasterKey  string
	NewRunner  func(siteID string) *agent.Controller // builds a Controller wired for one run
	VerifyOpts verify.VerdictOptions
}

// Server is the control-plane HTTP surface.
type Server struct {
	deps   Deps
	router *chi.Mux
	server *http.Server

	runs *runTracker
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps, router: chi.NewRouter(), runs: newRunTracker()}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE log stream holds the connection open
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Master-Key"},
		MaxAge:           300,
	}))

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireMasterKey)

		r.Get("/sites/{id}/settings", s.handleGetSettings)
		r.Get("/sites/{id}/settings/diff", s.handleGetSettingsDiff)
		r.Put("/sites/{id}/settings", s.handlePutSettings)
		r.Delete("/sites/{id}/settings", s.handleDeleteSettings)

		r.Post("/sites/{id}/agent", s.handleStartAgent)
		r.Post("/sites/{id}/agent/{runId}/resume", s.handleResumeAgent)
		r.Post("/sites/{id}/agent/{runId}/stop", s.handleStopAgent)
		r.Get("/sites/{id}/agent", s.handleGetAgent)

		r.Get("/builds/{buildId}/logs", s.handleBuildLogs)
	})
}

// Start serves until the process is told to stop.
func (s *Server) Start() error { return s.server.ListenAndServe() }

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// securityHeaders applies the fixed header block spec.md §6 requires on
// every response the control plane serves, mirroring the _headers file the
// pipeline writes into the optimized output tree.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}
