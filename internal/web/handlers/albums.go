package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
	"github.com/kozaktomas/photo-triage/internal/grouper"
	"github.com/kozaktomas/photo-triage/internal/library"
)

// AlbumsHandler serves album listings and the per-album cleanup sweep. All
// sweep mutations take the album's keyed mutex, satisfying the engine's
// serialization requirement.
type AlbumsHandler struct {
	repo             library.Repository
	engine           *cleanup.Engine
	defaultBatchSize int
	locks            *keyedMutex
}

// NewAlbumsHandler creates a new albums handler.
func NewAlbumsHandler(repo library.Repository, engine *cleanup.Engine, defaultBatchSize int) *AlbumsHandler {
	return &AlbumsHandler{
		repo:             repo,
		engine:           engine,
		defaultBatchSize: defaultBatchSize,
		locks:            newKeyedMutex(),
	}
}

// AlbumView is the JSON representation of an album.
type AlbumView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	ImageCount int    `json:"image_count"`
	ScannedAt  string `json:"scanned_at,omitempty"`
}

// ImageView is the JSON representation of an indexed photo.
type ImageView struct {
	ID         int64  `json:"id"`
	AlbumID    string `json:"album_id"`
	FileName   string `json:"file_name"`
	Path       string `json:"path"`
	CapturedAt string `json:"captured_at"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
}

// GroupView is the JSON representation of a similarity group.
type GroupView struct {
	ID      string      `json:"id"`
	Members []ImageView `json:"members"`
}

// ProgressView is the JSON representation of an album's sweep progress.
type ProgressView struct {
	AlbumID         string `json:"album_id"`
	State           string `json:"state"`
	TotalGroups     int    `json:"total_groups"`
	TotalImages     int    `json:"total_images"`
	ProcessedGroups int    `json:"processed_groups"`
	RemainingGroups int    `json:"remaining_groups"`
	RemainingImages int    `json:"remaining_images"`
	AnalyzedAt      string `json:"analyzed_at,omitempty"`
}

func albumView(a *library.Album) AlbumView {
	v := AlbumView{
		ID:         a.ID,
		Title:      a.Title,
		Path:       a.Path,
		ImageCount: a.ImageCount,
	}
	if !a.ScannedAt.IsZero() {
		v.ScannedAt = a.ScannedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func imageView(img *library.Image) ImageView {
	return ImageView{
		ID:         img.ID,
		AlbumID:    img.AlbumID,
		FileName:   img.FileName,
		Path:       img.Path,
		CapturedAt: img.CapturedAt.UTC().Format(time.RFC3339),
		Width:      img.Width,
		Height:     img.Height,
		SizeBytes:  img.SizeBytes,
	}
}

func groupViews(groups []grouper.Group) []GroupView {
	views := make([]GroupView, len(groups))
	for i, g := range groups {
		views[i] = GroupView{ID: g.ID, Members: make([]ImageView, len(g.Members))}
		for j := range g.Members {
			views[i].Members[j] = imageView(&g.Members[j])
		}
	}
	return views
}

func progressView(p *cleanup.Progress) ProgressView {
	v := ProgressView{
		AlbumID:         p.AlbumID,
		State:           string(p.State),
		TotalGroups:     p.TotalGroups,
		TotalImages:     p.TotalImages,
		ProcessedGroups: p.ProcessedGroups,
		RemainingGroups: p.RemainingGroups,
		RemainingImages: p.RemainingImages,
	}
	if !p.AnalyzedAt.IsZero() && p.State != cleanup.StateUnanalyzed {
		v.AnalyzedAt = p.AnalyzedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// List returns albums, optionally filtered by a search query (?q=) and
// restricted to albums with cleanup work left (?cleanable=true).
func (h *AlbumsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	cleanableOnly := r.URL.Query().Get("cleanable") == "true"

	var albums []library.Album
	var err error
	if query != "" {
		albums, err = h.repo.SearchAlbums(r.Context(), query)
	} else {
		albums, err = h.repo.Albums(r.Context())
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}

	if cleanableOnly {
		cleanable, err := h.engine.ListCleanable(r.Context())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		allowed := make(map[string]struct{}, len(cleanable))
		for _, a := range cleanable {
			allowed[a.ID] = struct{}{}
		}
		filtered := albums[:0]
		for _, a := range albums {
			if _, ok := allowed[a.ID]; ok {
				filtered = append(filtered, a)
			}
		}
		albums = filtered
	}

	views := make([]AlbumView, len(albums))
	for i := range albums {
		views[i] = albumView(&albums[i])
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"albums": views,
		"total":  len(views),
	})
}

// Get returns a single album.
func (h *AlbumsHandler) Get(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	album, err := h.repo.Album(r.Context(), albumID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if album == nil {
		respondError(w, http.StatusNotFound, "album not found")
		return
	}

	respondJSON(w, http.StatusOK, albumView(album))
}

// Progress returns the album's sweep progress derived from persisted state.
func (h *AlbumsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	progress, err := h.engine.Progress(r.Context(), albumID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, progressView(progress))
}

// Analyze partitions the album into similarity groups. Pass ?force=true to
// discard an existing analysis and regroup.
func (h *AlbumsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"

	unlock := h.locks.Lock(albumID)
	defer unlock()

	progress, err := h.engine.Analyze(r.Context(), albumID, force, time.Now())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, progressView(progress))
}

// BatchRequest is the body of a next-batch request.
type BatchRequest struct {
	Size int `json:"size"`
}

// Batch returns the next run of whole similarity groups for the album sweep.
// An omitted or zero size falls back to the configured default.
func (h *AlbumsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Size == 0 {
		req.Size = h.defaultBatchSize
	}

	unlock := h.locks.Lock(albumID)
	defer unlock()

	batch, err := h.engine.NextBatch(r.Context(), albumID, req.Size, time.Now())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"album_id":    batch.AlbumID,
		"groups":      groupViews(batch.Groups),
		"photo_count": batch.PhotoCount(),
	})
}

// ProcessedRequest is the body of a mark-processed request.
type ProcessedRequest struct {
	GroupIDs []string `json:"group_ids"`
}

// Processed marks the given groups permanently processed and returns the
// updated sweep progress.
func (h *AlbumsHandler) Processed(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	var req ProcessedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.GroupIDs) == 0 {
		respondError(w, http.StatusBadRequest, "group_ids is required")
		return
	}

	unlock := h.locks.Lock(albumID)
	defer unlock()

	progress, err := h.engine.MarkProcessed(r.Context(), albumID, req.GroupIDs, time.Now())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, progressView(progress))
}

// Reset clears the album's analysis, processed marks, checkpoint and
// completion flag.
func (h *AlbumsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")

	unlock := h.locks.Lock(albumID)
	defer unlock()

	if err := h.engine.Reset(r.Context(), albumID); err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"reset": true})
}
