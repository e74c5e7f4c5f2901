// Package logs implements the per-job progress log hub: append-only history
// with live fan-out to SSE and WebSocket subscribers.
package logs

import (
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/imitor/internal/interfaces"
)

// subscriberBuffer is the per-subscriber live channel capacity.
// A subscriber that falls this far behind starts missing lines.
const subscriberBuffer = 256

type stream struct {
	history     []string
	subscribers map[int]chan string
	nextSubID   int
	closed      bool
}

// Hub is the process-wide log hub. Implements interfaces.LogHub.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*stream
	logger  arbor.ILogger
}

// NewHub creates an empty hub
func NewHub(logger arbor.ILogger) *Hub {
	return &Hub{
		streams: make(map[string]*stream),
		logger:  logger,
	}
}

// Open creates the stream for a job. Idempotent; publishing to an unopened
// stream also opens it implicitly.
func (h *Hub) Open(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureStream(jobID)
}

func (h *Hub) ensureStream(jobID string) *stream {
	s, ok := h.streams[jobID]
	if !ok {
		s = &stream{subscribers: make(map[int]chan string)}
		h.streams[jobID] = s
	}
	return s
}

// Publish appends a line to the job's history and forwards it to live
// subscribers. Never blocks: a subscriber with a full buffer misses the line.
// Lines published after the stream is closed are discarded.
func (h *Hub) Publish(jobID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.ensureStream(jobID)
	if s.closed {
		return
	}

	s.history = append(s.history, line)
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			if h.logger != nil {
				h.logger.Debug().Str("job_id", jobID).Int("subscriber", id).Msg("Subscriber buffer full, dropping log line")
			}
		}
	}
}

// PublishCode publishes a generated-code fragment with the code line prefix
func (h *Hub) PublishCode(jobID, fragment string) {
	h.Publish(jobID, interfaces.CodePrefix+fragment)
}

// Subscribe returns a channel that first replays the job's full history, then
// carries live lines. The channel is closed once the terminal sentinel has
// been delivered, or when the returned cancel function is called.
func (h *Hub) Subscribe(jobID string) (<-chan string, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.ensureStream(jobID)

	// Capacity covers a full synchronous replay plus live headroom.
	ch := make(chan string, len(s.history)+subscriberBuffer)
	for _, line := range s.history {
		ch <- line
	}

	if s.closed {
		// Stream already ended; history includes the sentinel.
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := s.subscribers[id]; ok && cur == ch {
			delete(s.subscribers, id)
			close(ch)
		}
	}

	return ch, cancel
}

// Close publishes the terminal sentinel exactly once, delivers it to live
// subscribers, and detaches them. History survives so late subscribers still
// replay the complete stream. Idempotent.
func (h *Hub) Close(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.ensureStream(jobID)
	if s.closed {
		return
	}

	s.history = append(s.history, interfaces.LogSentinel)
	s.closed = true

	for id, ch := range s.subscribers {
		select {
		case ch <- interfaces.LogSentinel:
		default:
			if h.logger != nil {
				h.logger.Debug().Str("job_id", jobID).Int("subscriber", id).Msg("Subscriber missed stream sentinel")
			}
		}
		close(ch)
		delete(s.subscribers, id)
	}
}

// History returns a copy of the job's accumulated log lines
func (h *Hub) History(jobID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.streams[jobID]
	if !ok {
		return nil
	}
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Drop removes a job's stream and history entirely, detaching any remaining
// subscribers. Used by the retention sweep.
func (h *Hub) Drop(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[jobID]
	if !ok {
		return
	}
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	delete(h.streams, jobID)
}
