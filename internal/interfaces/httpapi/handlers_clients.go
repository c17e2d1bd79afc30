package httpapi

import (
	"net/http"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
)

// handleClientsList answers GET /clients with every known client's last
// heartbeat.
func (s *server) handleClientsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clients": s.Ingest.Clients()})
}

type heartbeatRequest struct {
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
	AppVersion  string `json:"app_version"`
}

// handleClientsHeartbeat answers POST /clients/heartbeat, recording or
// refreshing the calling client's identity and device info.
func (s *server) handleClientsHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	clientID, clientName := clientIdentityFromHeaders(r)
	if clientID == "" {
		writeError(w, http.StatusBadRequest, errClientIDRequired)
		return
	}
	id := ingest.ClientIdentity{ClientID: clientID, ClientName: clientName}
	c := s.Ingest.Heartbeat(id, req.DeviceModel, req.OSVersion, req.AppVersion, r.RemoteAddr)
	s.recordClientActivity()
	writeJSON(w, http.StatusOK, c)
}
