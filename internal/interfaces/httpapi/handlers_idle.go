package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/idle"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

type idleResponse struct {
	Tier           string             `json:"tier"`
	IdleSeconds    float64            `json:"idle_seconds"`
	ActiveProfile  string             `json:"active_profile_id"`
	History        []tier.Transition  `json:"history"`
}

// handleIdleGet answers GET /idle with the current tier, idle duration,
// active profile, and transition history.
func (s *server) handleIdleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, idleResponse{
		Tier:          s.Idle.CurrentTier().String(),
		IdleSeconds:   s.Idle.IdleDuration().Seconds(),
		ActiveProfile: s.Idle.ActiveProfile().ID,
		History:       s.Idle.History(),
	})
}

type keepAwakeInput struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

// handleIdleKeepAwake answers POST /idle/keep-awake, suppressing idle
// transitions for the requested duration.
func (s *server) handleIdleKeepAwake(w http.ResponseWriter, r *http.Request) {
	var in keepAwakeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.DurationSeconds <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("duration_seconds must be positive"))
		return
	}
	s.Idle.KeepAwake(time.Duration(in.DurationSeconds) * time.Second)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordClientActivity marks inbound client traffic as daemon activity
// for the idle state machine: a client submitting logs, metrics, or
// heartbeats is an active user of the fleet.
func (s *server) recordClientActivity() {
	if s.Idle != nil {
		s.Idle.RecordActivity(idle.ActivityRequest)
	}
}

type activityInput struct {
	ServiceID string `json:"service_id,omitempty"`
	Kind      string `json:"kind"`
}

// handleActivity answers POST /api/activity, the hot-path hook callers
// use when they route a request or inference through a supervised
// service: it bumps the per-service rolling activity counter and resets
// the idle timer.
func (s *server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var in activityInput
	if !decodeJSON(w, r, &in) {
		return
	}
	kind := idle.ActivityKind(in.Kind)
	if kind != idle.ActivityRequest && kind != idle.ActivityInference {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown activity kind %q", in.Kind))
		return
	}
	if in.ServiceID != "" && s.Monitor != nil {
		s.Monitor.RecordServiceActivity(in.ServiceID, in.Kind)
	}
	if s.Idle != nil {
		s.Idle.RecordActivity(kind)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIdleForce answers POST /idle/force/{tier}, pinning the idle state
// machine to the named tier.
func (s *server) handleIdleForce(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tier")
	t, ok := tier.ParseTier(name)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown tier %q", name))
		return
	}
	s.Idle.ForceTier(t)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
