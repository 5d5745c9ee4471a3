package handlers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
	"github.com/kozaktomas/photo-triage/internal/recommend"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps engine errors to HTTP status codes: contract
// violations become 400, missing prerequisites 404/409, everything else is a
// persistence failure and becomes 500.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cleanup.ErrInvalidBatchSize), errors.Is(err, recommend.ErrInvalidBatchSize):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cleanup.ErrAlbumNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cleanup.ErrNotAnalyzed):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// keyedMutex serializes operations per string key. The cleanup engine
// requires callers to linearize calls against the same album; the handlers
// satisfy that here.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
