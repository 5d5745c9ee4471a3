package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/kozaktomas/photo-triage/internal/library"
	"github.com/kozaktomas/photo-triage/internal/recommend"
)

// RecommendHandler serves the free-form triage batches and the cooldown undo
// endpoint. A single mutex serializes batch draws; the engine requires
// callers to linearize access to its ledgers.
type RecommendHandler struct {
	repo             library.Repository
	engine           *recommend.Engine
	defaultBatchSize int
	locks            *keyedMutex
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(repo library.Repository, engine *recommend.Engine, defaultBatchSize int) *RecommendHandler {
	return &RecommendHandler{
		repo:             repo,
		engine:           engine,
		defaultBatchSize: defaultBatchSize,
		locks:            newKeyedMutex(),
	}
}

// RecommendationsRequest is the body of a batch request.
type RecommendationsRequest struct {
	Count int    `json:"count"`
	Mode  string `json:"mode"`
}

// Recommendations draws the next free-form batch over the whole library.
func (h *RecommendHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Count == 0 {
		req.Count = h.defaultBatchSize
	}
	if req.Mode == "" {
		req.Mode = string(recommend.ModeRandomWalk)
	}

	mode, err := recommend.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pool, err := h.repo.AllImages(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	unlock := h.locks.Lock("batch")
	defer unlock()

	batch, err := h.engine.Next(r.Context(), pool, req.Count, mode, time.Now())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	photos := make([]ImageView, len(batch.Photos))
	for i := range batch.Photos {
		photos[i] = imageView(&batch.Photos[i])
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mode":   string(batch.Mode),
		"photos": photos,
		"groups": groupViews(batch.Groups),
	})
}

// CooldownsRequest is the body of a cooldown removal (undo) request.
type CooldownsRequest struct {
	PhotoIDs []int64 `json:"photo_ids"`
}

// RemoveCooldowns drops the cooldown entries of the given photos, making
// them eligible for the very next batch. Used when the user switches away
// from a pick without acting on it.
func (h *RecommendHandler) RemoveCooldowns(w http.ResponseWriter, r *http.Request) {
	var req CooldownsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.PhotoIDs) == 0 {
		respondError(w, http.StatusBadRequest, "photo_ids is required")
		return
	}

	keys := make([]string, len(req.PhotoIDs))
	for i, id := range req.PhotoIDs {
		keys[i] = strconv.FormatInt(id, 10)
	}

	if err := h.engine.Photos().Remove(r.Context(), keys...); err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"removed": len(keys)})
}
