package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/storage"
)

// LogsHandler streams job progress logs over Server-Sent Events
type LogsHandler struct {
	orchestrator interfaces.JobOrchestrator
	hub          interfaces.LogHub
	logger       arbor.ILogger
}

// NewLogsHandler creates a new LogsHandler
func NewLogsHandler(orchestrator interfaces.JobOrchestrator, hub interfaces.LogHub, logger arbor.ILogger) *LogsHandler {
	return &LogsHandler{
		orchestrator: orchestrator,
		hub:          hub,
		logger:       logger,
	}
}

// StreamHandler handles GET /api/clone/{id}/logs.
// The stream replays the job's full history, then carries live lines; it ends
// after the terminal sentinel has been sent.
func (h *LogsHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := JobIDFromPath(r.URL.Path, "/api/clone/")
	if _, err := h.orchestrator.GetJob(jobID); err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	lines, cancel := h.hub.Subscribe(jobID)
	defer cancel()

	h.logger.Debug().Str("job_id", jobID).Msg("SSE log subscriber connected")

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("job_id", jobID).Msg("SSE log subscriber disconnected")
			return

		case line, open := <-lines:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
			if line == interfaces.LogSentinel {
				return
			}
		}
	}
}
