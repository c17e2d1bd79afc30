package httpapi

import "net/http"

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_sec"`
}

// handleHealth answers GET /health with liveness status and uptime.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.Clock.Now()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Version:   version,
		UptimeSec: int64(now.Sub(s.Started).Seconds()),
	})
}

type statsResponse struct {
	Counters    any     `json:"counters"`
	ClientCount int     `json:"client_count"`
	PeerCount   int     `json:"peer_count"`
	IdleTier    string  `json:"idle_tier"`
	ActiveID    string  `json:"active_profile_id"`
	ServerCount int     `json:"server_count"`
	UptimeSec   int64   `json:"uptime_sec"`
	Recent      any     `json:"recent,omitempty"`
	History     any     `json:"history,omitempty"`
}

// handleStats answers GET /stats with ingest counters, client/peer/server
// counts, uptime, the current idle tier, and the recent-window
// derivations from the resource monitor and history aggregator.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.Clock.Now()
	resp := statsResponse{
		Counters:    s.Ingest.Counters(),
		ClientCount: len(s.Ingest.Clients()),
		ServerCount: len(s.Servers.List()),
		UptimeSec:   int64(now.Sub(s.Started).Seconds()),
	}
	if s.Broadcast != nil {
		resp.PeerCount = s.Broadcast.PeerCount()
	}
	if s.Idle != nil {
		resp.IdleTier = s.Idle.CurrentTier().String()
		resp.ActiveID = s.Idle.ActiveProfile().ID
	}
	if s.Monitor != nil {
		resp.Recent = s.Monitor.Summary()
	}
	if s.Aggregator != nil {
		resp.History = s.Aggregator.Summary(now)
	}
	writeJSON(w, http.StatusOK, resp)
}
