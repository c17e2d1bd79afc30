package httpapi

import (
	"net/http"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/upstream"
)

// handleServersList probes every registered upstream concurrently and
// returns their status + response_time_ms.
func (s *server) handleServersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"servers": s.Servers.ProbeAll(r.Context())})
}

type serverInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// handleServersAdd answers POST /servers, registering a new upstream.
func (s *server) handleServersAdd(w http.ResponseWriter, r *http.Request) {
	var in serverInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.ID == "" || in.URL == "" {
		writeError(w, http.StatusBadRequest, errBodyRequired)
		return
	}
	added, err := s.Servers.Add(upstream.Server{ID: in.ID, Name: in.Name, URL: in.URL})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, added)
}

// handleServersRemove answers DELETE /servers/{id}, deregistering an
// upstream.
func (s *server) handleServersRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Servers.Remove(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
