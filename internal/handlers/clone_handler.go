package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/models"
	"github.com/ternarybob/imitor/internal/services/archive"
	"github.com/ternarybob/imitor/internal/storage"
)

// CloneHandler serves the clone job API: creation, inspection, and download
type CloneHandler struct {
	orchestrator interfaces.JobOrchestrator
	logger       arbor.ILogger
}

// NewCloneHandler creates a new CloneHandler
func NewCloneHandler(orchestrator interfaces.JobOrchestrator, logger arbor.ILogger) *CloneHandler {
	return &CloneHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// CreateHandler handles POST /api/clone
func (h *CloneHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.CloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	job, err := h.orchestrator.CreateJob(r.Context(), &req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ListHandler handles GET /api/clone
func (h *CloneHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobs := h.orchestrator.ListJobs()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetHandler handles GET /api/clone/{id}
func (h *CloneHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := JobIDFromPath(r.URL.Path, "/api/clone/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.orchestrator.GetJob(jobID)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// DownloadHandler handles GET /api/clone/{id}/download.
// Full-site jobs download as a zip archive; single-page jobs as an HTML file.
func (h *CloneHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := JobIDFromPath(r.URL.Path, "/api/clone/")
	job, err := h.orchestrator.GetJob(jobID)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	if job.Status != models.JobStatusCompleted {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Job is %s, download requires a completed job", job.Status))
		return
	}

	switch {
	case job.FullSiteResult != nil:
		data, err := archive.BuildSiteArchive(job.FullSiteResult)
		if err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to build site archive")
			WriteError(w, http.StatusInternalServerError, "Failed to build archive")
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", jobID))
		w.Write(data)

	case job.Result != nil:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.html", jobID))
		w.Write([]byte(job.Result.HTML))

	default:
		WriteError(w, http.StatusInternalServerError, "Completed job has no result")
	}
}
