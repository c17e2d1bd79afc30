package httpapi

import (
	"net/http"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// handleProfilesList answers GET /profiles with every profile and the
// currently active profile id.
func (s *server) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles":         s.Profiles.List(),
		"active_profile_id": s.Profiles.ActiveID(),
	})
}

type profileInput struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Thresholds  thresholdsInput   `json:"thresholds"`
	Enabled     bool              `json:"enabled"`
}

type thresholdsInput struct {
	Warm    int64 `json:"warm"`
	Cool    int64 `json:"cool"`
	Cold    int64 `json:"cold"`
	Dormant int64 `json:"dormant"`
}

// toDomain converts the wire shape into a profile.Profile.
//
// Returns:
//   - profile.Profile: the converted profile.
func (in profileInput) toDomain() profile.Profile {
	return profile.Profile{
		ID:          in.ID,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Enabled:     in.Enabled,
		Thresholds: tier.Thresholds{
			WarmSeconds:    in.Thresholds.Warm,
			CoolSeconds:    in.Thresholds.Cool,
			ColdSeconds:    in.Thresholds.Cold,
			DormantSeconds: in.Thresholds.Dormant,
		},
	}
}

// handleProfilesCreate answers POST /profiles, creating a new profile.
func (s *server) handleProfilesCreate(w http.ResponseWriter, r *http.Request) {
	var in profileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.Profiles.Create(r.Context(), in.toDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleProfilesUpdate answers PUT /profiles/{id}, replacing an existing
// profile's fields.
func (s *server) handleProfilesUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in profileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.Profiles.Update(r.Context(), id, in.toDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type duplicateInput struct {
	NewID          string `json:"new_id"`
	NewDisplayName string `json:"new_display_name"`
}

// handleProfilesDuplicate answers POST /profiles/{id}/duplicate, copying
// an existing profile under a new id.
func (s *server) handleProfilesDuplicate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in duplicateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.Profiles.Duplicate(r.Context(), id, in.NewID, in.NewDisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleProfilesDelete answers DELETE /profiles/{id}, removing a
// non-builtin profile.
func (s *server) handleProfilesDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Profiles.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProfilesActivate answers POST /profiles/{id}/activate, switching
// the active profile.
func (s *server) handleProfilesActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.Profiles.Activate(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
