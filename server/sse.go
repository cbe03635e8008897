package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xhad/askdocs/pkg/agent"
)

// SSEWriter serializes orchestrator events onto a Server-Sent Events
// response, one event per emit, flushed immediately.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the SSE headers and wraps the response writer.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Encode writes one orchestrator event in wire order.
func (s *SSEWriter) Encode(ev agent.Event) error {
	switch ev.Type {
	case agent.EventUserMessage, agent.EventDone:
		return s.writeEvent(string(ev.Type), ev.Message)
	case agent.EventSearch:
		return s.writeEvent(string(ev.Type), ev.Search)
	case agent.EventChunk:
		return s.writeEvent(string(ev.Type), map[string]string{"content": ev.Chunk})
	case agent.EventError:
		return s.writeEvent(string(ev.Type), map[string]string{"message": ev.Err})
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (s *SSEWriter) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}
