package store

import (
	"context"
	"encoding/json"
	"sync"

	"siteforge/engine/models"
)

// MemStore is the default, in-process Store implementation: a deep-copying
// map guarded by one mutex. Deep copies are taken via JSON round-trip
// (mirroring the teacher's resources.Manager deepCopyPage approach) so
// callers mutating a returned pointer never corrupt what's stored.
type MemStore struct {
	mu         sync.RWMutex
	sites      map[string]*models.Site
	builds     map[string]*models.Build
	runs       map[string]*models.AgentRun
	iterations map[string][]models.IterationResult
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sites:      make(map[string]*models.Site),
		builds:     make(map[string]*models.Build),
		runs:       make(map[string]*models.AgentRun),
		iterations: make(map[string][]models.IterationResult),
	}
}

func deepCopy[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func (m *MemStore) PutSite(_ context.Context, site *models.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.ID] = deepCopy(site)
	return nil
}

func (m *MemStore) GetSite(_ context.Context, id string) (*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(s), nil
}

func (m *MemStore) ListSites(_ context.Context) ([]*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, deepCopy(s))
	}
	return out, nil
}

func (m *MemStore) DeleteSite(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sites, id)
	return nil
}

func (m *MemStore) PutBuild(_ context.Context, build *models.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds[build.ID] = deepCopy(build)
	return nil
}

func (m *MemStore) GetBuild(_ context.Context, id string) (*models.Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.builds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(b), nil
}

func (m *MemStore) ListBuildsForSite(_ context.Context, siteID string) ([]*models.Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Build
	for _, b := range m.builds {
		if b.SiteID == siteID {
			out = append(out, deepCopy(b))
		}
	}
	return out, nil
}

func (m *MemStore) PutAgentRun(_ context.Context, run *models.AgentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = deepCopy(run)
	return nil
}

func (m *MemStore) GetAgentRun(_ context.Context, id string) (*models.AgentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(r), nil
}

func (m *MemStore) GetActiveAgentRunForSite(_ context.Context, siteID string) (*models.AgentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.SiteID == siteID && r.Status == models.AgentRunning {
			return deepCopy(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) AppendIterationResult(_ context.Context, runID string, result models.IterationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iterations[runID] = append(m.iterations[runID], deepCopy(result))
	return nil
}

func (m *MemStore) ListIterationResults(_ context.Context, runID string) ([]models.IterationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.IterationResult, len(m.iterations[runID]))
	copy(out, m.iterations[runID])
	return out, nil
}

func (m *MemStore) Close() error { return nil }
