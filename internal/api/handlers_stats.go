package api

import (
	"net/http"
)

func (s *Server) handleResolveStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	if stats == nil {
		jsonError(w, "resolve stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window":      stats.Window().String(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       stats.Snapshot(),
	})
}
