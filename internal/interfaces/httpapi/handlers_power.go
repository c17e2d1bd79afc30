package httpapi

import "net/http"

// handlePowerCurrent answers GET /power with the latest power sample and
// its rolling summary.
func (s *server) handlePowerCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": s.Monitor.SnapshotCurrent(),
		"summary":  s.Monitor.Summary(),
	})
}

// handlePowerHistory answers GET /power/history with up to limit
// (default 720) recent power samples.
func (s *server) handlePowerHistory(w http.ResponseWriter, r *http.Request) {
	limit := atoiDefault(r.URL.Query().Get("limit"), 720)
	writeJSON(w, http.StatusOK, s.Monitor.History(limit))
}
