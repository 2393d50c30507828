package agent

import (
	"sync"

	"siteforge/engine/models"
)

// Registry enforces invariant (i) from spec.md §3: at most one active
// AgentRun per site. It is an in-process map; the store-backed DB check on
// start (spec.md §5 "Single-writer discipline") is the caller's
// responsibility when persisting a new AgentRun row.
type Registry struct {
	mu     sync.Mutex
	active map[string]string // siteID -> runID
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]string)}
}

// Start registers runID as the active run for siteID, failing if one is
// already active.
func (r *Registry) Start(siteID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.active[siteID]; ok && existing != "" {
		return models.ErrSiteBusy
	}
	r.active[siteID] = runID
	return nil
}

// Finish releases siteID's active-run slot, if runID matches the holder.
func (r *Registry) Finish(siteID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[siteID] == runID {
		delete(r.active, siteID)
	}
}

// ActiveRun reports the run currently active for siteID, if any.
func (r *Registry) ActiveRun(siteID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runID, ok := r.active[siteID]
	return runID, ok
}
