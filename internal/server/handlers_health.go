package server

import (
	"net/http"

	"github.com/advisor-ai/advisor/internal/metrics"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status            string  `json:"status"`
	UptimeSeconds     int64   `json:"uptimeSeconds"`
	RequestsProcessed int64   `json:"requestsProcessed"`
	ErrorRate         float64 `json:"errorRate"`
}

// handleHealth reports process liveness. It never calls the model
// endpoint: healthy means the service is up, not that inference works.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var summary metrics.Summary
	if s.collector != nil {
		summary = s.collector.Snapshot()
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "ok",
		UptimeSeconds:     summary.UptimeSeconds,
		RequestsProcessed: summary.Requests,
		ErrorRate:         summary.ErrorRate,
	})
}

// handleMetrics returns the full metrics snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusOK, metrics.Summary{})
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}
