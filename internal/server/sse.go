package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/logging"
)

// SSEHeartbeatInterval is the interval for SSE heartbeats.
const SSEHeartbeatInterval = 30 * time.Second

// sseEventBuffer is the per-connection event buffer; events beyond it
// are dropped rather than blocking the bus.
const sseEventBuffer = 10

// busEvent is the wire form of a bus event on the /events stream.
type busEvent struct {
	Type event.EventType `json:"type"`
	Data any             `json:"data"`
}

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	// ResponseController flushes reliably through middleware wrappers (Go 1.20+)
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// start writes the SSE headers and commits the 200 status line.
func (s *sseWriter) start() {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// writeEvent writes one SSE event and flushes it.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if err != nil {
		return err
	}

	if flushErr := s.rc.Flush(); flushErr != nil {
		// Fallback to traditional flusher
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// handleEvents streams bus events over SSE. With a sessionID query
// parameter only that session's events are forwarded; without one the
// full firehose is.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	sse.start()

	if err := sse.writeEvent("connected", map[string]string{"sessionID": sessionID}); err != nil {
		return
	}

	// Small buffer keeps streaming low-latency; the bus never blocks on
	// a slow consumer.
	events := make(chan event.Event, sseEventBuffer)

	unsub := event.SubscribeAll(func(e event.Event) {
		if sessionID != "" && !eventBelongsToSession(e, sessionID) {
			return
		}
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Str("sessionID", sessionID).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", busEvent{Type: e.Type, Data: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// eventBelongsToSession checks if an event belongs to a session.
func eventBelongsToSession(e event.Event, sessionID string) bool {
	switch data := e.Data.(type) {
	case event.RequestReceivedData:
		return data.SessionID == sessionID
	case event.RequestStateData:
		return data.SessionID == sessionID
	case event.RequestRetryData:
		return data.SessionID == sessionID
	case event.ResponseChunkData:
		return data.SessionID == sessionID
	case event.FilterAppliedData:
		return data.SessionID == sessionID
	case event.RequestCompletedData:
		return data.SessionID == sessionID
	case event.RequestFailedData:
		return data.SessionID == sessionID
	case event.TurnAppendedData:
		return data.SessionID == sessionID
	case event.SessionEvictedData:
		return data.SessionID == sessionID
	case event.SessionClosedData:
		return data.SessionID == sessionID
	}
	return false
}
