package httpapi

import "net/http"

// handleServicesList reconciles and returns every supervised service's
// status plus the memory totals across every owned pid: each GET
// doubles as a reconciliation pass.
func (s *server) handleServicesList(w http.ResponseWriter, r *http.Request) {
	rssKB, vszKB := s.Supervisor.MemoryTotals(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"services": s.Supervisor.List(r.Context()),
		"memory":   map[string]int64{"rss_kb": rssKB, "vsz_kb": vszKB},
	})
}

// handleServiceStart answers POST /services/{id}/start.
func (s *server) handleServiceStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Supervisor.Start(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleServiceStop answers POST /services/{id}/stop.
func (s *server) handleServiceStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Supervisor.Stop(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleServiceRestart answers POST /services/{id}/restart.
func (s *server) handleServiceRestart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Supervisor.Restart(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleServicesStartAll answers POST /services/start-all.
func (s *server) handleServicesStartAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": s.Supervisor.StartAll(r.Context())})
}

// handleServicesStopAll answers POST /services/stop-all.
func (s *server) handleServicesStopAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": s.Supervisor.StopAll(r.Context())})
}
