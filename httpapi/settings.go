package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"siteforge/engine/models"
	"siteforge/engine/settings"
	"siteforge/engine/store"
)

func (s *Server) loadSite(w http.ResponseWriter, r *http.Request) (*models.Site, bool) {
	id := chi.URLParam(r, "id")
	site, err := s.deps.Store.GetSite(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown site")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return site, true
}

// handleGetSettings implements `GET /sites/{id}/settings` ->
// `{settings, defaults}` (spec.md §6).
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	defaults := settings.DefaultsTree(s.deps.Schema)
	effective := settings.Resolve(defaults, site.Overrides)
	writeJSON(w, http.StatusOK, map[string]any{"settings": effective, "defaults": defaults})
}

// handleGetSettingsDiff implements `GET /sites/{id}/settings/diff` ->
// `{diff, overrideCount}`.
func (s *Server) handleGetSettingsDiff(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	defaults := settings.DefaultsTree(s.deps.Schema)
	effective := settings.Resolve(defaults, site.Overrides)
	diff, overrideCount := settings.Diff(s.deps.Schema, defaults, effective)
	writeJSON(w, http.StatusOK, map[string]any{"diff": diff, "overrideCount": overrideCount})
}

// handlePutSettings implements `PUT /sites/{id}/settings` (body: full
// override tree) -> 204, rejecting invalid leaves at the boundary per the
// "Validation" error-kind row (spec.md §7): no state change on failure.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}

	var overrides models.Settings
	if err := decodeJSON(r, &overrides); err != nil {
		writeError(w, http.StatusBadRequest, "malformed settings body: "+err.Error())
		return
	}

	flat := settings.Flatten(s.deps.Schema, overrides)
	if errs, _ := s.deps.Schema.Validate(flat); len(errs) > 0 {
		details := make([]string, 0, len(errs))
		for _, e := range errs {
			details = append(details, e.Error())
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": models.ErrValidation.Error(), "details": details})
		return
	}

	site.Overrides = overrides
	if err := s.deps.Store.PutSite(r.Context(), site); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSettings implements `DELETE /sites/{id}/settings` -> resets
// overrides to empty, leaving the site running on pure defaults.
func (s *Server) handleDeleteSettings(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadSite(w, r)
	if !ok {
		return
	}
	site.Overrides = models.Settings{}
	if err := s.deps.Store.PutSite(r.Context(), site); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
