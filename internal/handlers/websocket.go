package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/storage"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHandler streams job progress logs over a WebSocket connection
type WebSocketHandler struct {
	orchestrator interfaces.JobOrchestrator
	hub          interfaces.LogHub
	upgrader     websocket.Upgrader
	logger       arbor.ILogger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(orchestrator interfaces.JobOrchestrator, hub interfaces.LogHub, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		orchestrator: orchestrator,
		hub:          hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Same trust model as the CORS middleware
			},
		},
		logger: logger,
	}
}

// StreamHandler handles GET /api/clone/{id}/ws. Each log line is sent as one
// text message; the connection closes after the terminal sentinel.
func (h *WebSocketHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	jobID := JobIDFromPath(r.URL.Path, "/api/clone/")
	if _, err := h.orchestrator.GetJob(jobID); err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("WebSocket upgrade failed")
		return
	}

	h.logger.Debug().Str("job_id", jobID).Msg("WebSocket log subscriber connected")

	lines, cancelSub := h.hub.Subscribe(jobID)

	// One writer at a time per connection.
	var writeMu sync.Mutex
	done := make(chan struct{})

	// Reader pump: consumes control frames and detects client disconnect.
	common.SafeGo(h.logger, "wsReader:"+jobID, func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	defer func() {
		cancelSub()
		conn.Close()
		h.logger.Debug().Str("job_id", jobID).Msg("WebSocket log subscriber disconnected")
	}()

	for {
		select {
		case <-done:
			return

		case line, open := <-lines:
			if !open {
				return
			}

			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := conn.WriteMessage(websocket.TextMessage, []byte(line))
			writeMu.Unlock()
			if err != nil {
				// Slow or dead client: detach silently.
				return
			}

			if line == interfaces.LogSentinel {
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"))
				writeMu.Unlock()
				return
			}
		}
	}
}
