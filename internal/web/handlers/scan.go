package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-triage/internal/library"
)

// ScanHandler runs library scans as async jobs with SSE progress events.
type ScanHandler struct {
	scanner    *library.Scanner
	roots      []string
	jobManager *JobManager
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scanner *library.Scanner, roots []string, jm *JobManager) *ScanHandler {
	return &ScanHandler{
		scanner:    scanner,
		roots:      roots,
		jobManager: jm,
	}
}

// Start kicks off a new library scan job. Only one scan may run at a time.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	if len(h.roots) == 0 {
		respondError(w, http.StatusBadRequest, "no library roots configured")
		return
	}

	if running := h.jobManager.RunningScan(); running != nil {
		respondError(w, http.StatusConflict, fmt.Sprintf("scan %s is already running", running.ID))
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, h.roots)

	go h.runScanJob(job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// Status returns the status of a scan job.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Events streams scan job events via SSE.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job
		},
	)
}

// Cancel cancels a scan job.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runScanJob runs the scan in the background.
func (h *ScanHandler) runScanJob(job *ScanJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Library scan started"})

	result, err := h.scanner.Scan(ctx, job.Roots, func(done, total int, path string) {
		job.mu.Lock()
		job.IndexedFiles = done
		job.TotalFiles = total
		if total > 0 {
			job.Progress = int(float64(done) / float64(total) * 100)
		}
		job.mu.Unlock()
		job.SendEvent(JobEvent{
			Type: "progress",
			Data: map[string]any{
				"indexed": done,
				"total":   total,
				"path":    path,
			},
		})
	})

	if err != nil {
		if ctx.Err() != nil {
			job.mu.Lock()
			job.Status = JobStatusCancelled
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Scan was cancelled"})
			return
		}
		h.failJob(job, fmt.Sprintf("scan failed: %v", err))
		return
	}

	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	job.Result = &ScanJobResult{
		Albums:  result.Albums,
		Images:  result.Images,
		Removed: result.Removed,
	}
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: "completed", Data: job.Result})
}

// failJob marks a job as failed with the given message.
func (h *ScanHandler) failJob(job *ScanJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "failed", Message: message})
}
