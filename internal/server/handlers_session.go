package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/advisor-ai/advisor/internal/event"
	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/pkg/types"
)

// historyResponse is the body of GET /session/{sessionID}/history.
type historyResponse struct {
	Session *types.SessionInfo `json:"session"`
	Turns   []types.Turn       `json:"turns"`
}

// handleSessionHistory returns every retained turn for a session.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	info, err := s.store.Info(r.Context(), sessionID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	turns, err := s.store.Turns(r.Context(), sessionID)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Session: info, Turns: turns})
}

// handleSessionClose aborts any in-flight request for the session and
// drops its stored turns.
func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	aborted := s.engine.Abort(sessionID)

	if err := s.store.Evict(r.Context(), sessionID); err != nil {
		// An aborted in-flight request may not have stored turns yet;
		// closing it still counts as a successful close.
		if !errors.Is(err, history.ErrNotFound) || !aborted {
			writeTaxonomyError(w, err)
			return
		}
	}

	event.Publish(event.Event{
		Type: event.SessionClosed,
		Data: event.SessionClosedData{SessionID: sessionID},
	})

	writeSuccess(w)
}
