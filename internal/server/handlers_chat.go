package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/advisor-ai/advisor/internal/safety"
	"github.com/advisor-ai/advisor/pkg/types"
)

// chatRequest is the body of POST /chat.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream,omitempty"`
}

// chunkEvent is one streamed text delta on the chat SSE stream.
type chunkEvent struct {
	Delta string `json:"delta"`
	Seq   int    `json:"seq"`
}

// handleChat runs one conversational request through the pipeline.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	if req.Stream {
		s.chatStream(w, r, req)
		return
	}

	resp, err := s.engine.Converse(r.Context(), req.SessionID, req.Message, nil)
	if err != nil {
		var policyErr *safety.PolicyViolationError
		if errors.As(err, &policyErr) {
			writeJSON(w, http.StatusOK, refusalResponse(req.SessionID, policyErr))
			return
		}
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// chatStream streams chunk events while the model produces text, then a
// terminal done event carrying the full Response. Pipeline errors after
// the stream has opened arrive as an error event since the status line
// is already written.
func (s *Server) chatStream(w http.ResponseWriter, r *http.Request, req chatRequest) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	sse.start()

	resp, err := s.engine.Converse(r.Context(), req.SessionID, req.Message, func(delta string, seq int) {
		sse.writeEvent("chunk", chunkEvent{Delta: delta, Seq: seq})
	})
	if err != nil {
		var policyErr *safety.PolicyViolationError
		if errors.As(err, &policyErr) {
			sse.writeEvent("done", refusalResponse(req.SessionID, policyErr))
			return
		}
		_, code, message := statusFor(err)
		sse.writeEvent("error", ErrorDetail{Code: code, Message: message})
		return
	}

	sse.writeEvent("done", resp)
}

// refusalResponse is what a blocked response surfaces as: a generic
// refusal that never carries the blocked text.
func refusalResponse(sessionID string, policyErr *safety.PolicyViolationError) *types.Response {
	return &types.Response{
		SessionID: sessionID,
		Text:      refusalMessage,
		Blocked:   true,
		Flags:     []types.FilterFlag{{Rule: policyErr.Rule, Action: string(safety.ActionBlock)}},
		Reason:    types.ReasonStop,
	}
}
