package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/photo-triage/internal/cooldown"
	"github.com/kozaktomas/photo-triage/internal/library"
)

// StatsHandler serves aggregate library and engine statistics.
type StatsHandler struct {
	repo   library.Repository
	photos *cooldown.Ledger
	groups *cooldown.Ledger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo library.Repository, photos, groups *cooldown.Ledger) *StatsHandler {
	return &StatsHandler{
		repo:   repo,
		photos: photos,
		groups: groups,
	}
}

// Get returns index totals plus the number of photos and groups currently
// resting in cooldown.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	now := time.Now()
	photosResting, err := h.photos.ActiveKeys(r.Context(), now)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	groupsResting, err := h.groups.ActiveKeys(r.Context(), now)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	view := map[string]any{
		"albums":             stats.Albums,
		"images":             stats.Images,
		"total_bytes":        stats.TotalBytes,
		"photos_in_cooldown": len(photosResting),
		"groups_in_cooldown": len(groupsResting),
	}
	if !stats.OldestCapture.IsZero() {
		view["oldest_capture"] = stats.OldestCapture.UTC().Format(time.RFC3339)
	}
	if !stats.NewestCapture.IsZero() {
		view["newest_capture"] = stats.NewestCapture.UTC().Format(time.RFC3339)
	}

	respondJSON(w, http.StatusOK, view)
}
