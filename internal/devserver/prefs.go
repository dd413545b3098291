package devserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmynk/foodguardian/internal/middleware"
	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/storage"
)

// MaxPrefsRadiusKm is the largest radius the backend stores.
const MaxPrefsRadiusKm = 100

// prefsRequest keeps each field raw so that absent and null can be told
// apart from a value.
type prefsRequest struct {
	Notify      json.RawMessage `json:"notify"`
	RadiusKm    json.RawMessage `json:"radius_km"`
	Location    json.RawMessage `json:"location"`
	ItemFilters json.RawMessage `json:"item_filters"`
}

var errBadPrefs = errors.New("invalid preferences")

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// parsePrefs turns a request into a partial update. Absent or null fields
// leave the stored value unchanged.
func parsePrefs(req prefsRequest) (storage.PreferencePatch, error) {
	var patch storage.PreferencePatch

	if present(req.Notify) {
		var notify bool
		if err := json.Unmarshal(req.Notify, &notify); err != nil {
			return patch, fmt.Errorf("%w: notify must be a boolean", errBadPrefs)
		}
		patch.Notify = &notify
	}

	if present(req.RadiusKm) {
		var radius float64
		if err := json.Unmarshal(req.RadiusKm, &radius); err != nil {
			return patch, fmt.Errorf("%w: radius_km must be a number", errBadPrefs)
		}
		if radius <= 0 || radius > MaxPrefsRadiusKm {
			return patch, fmt.Errorf("%w: radius_km must be between 0 and %d", errBadPrefs, MaxPrefsRadiusKm)
		}
		patch.RadiusKm = &radius
	}

	if present(req.Location) {
		var loc models.Coordinate
		if err := json.Unmarshal(req.Location, &loc); err != nil {
			return patch, fmt.Errorf("%w: location must be {lat, lng} within range", errBadPrefs)
		}
		patch.Location = &loc
	}

	if present(req.ItemFilters) {
		var raw []string
		if err := json.Unmarshal(req.ItemFilters, &raw); err != nil {
			return patch, fmt.Errorf("%w: item_filters must be a list of strings", errBadPrefs)
		}
		filters := make([]string, 0, len(raw))
		for _, f := range raw {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				filters = append(filters, f)
			}
		}
		patch.ItemFilters = filters
		patch.HasFilters = true
	}

	return patch, nil
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	var req prefsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	patch, err := parsePrefs(req)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadPrefs.Error()+": "))
		return
	}

	userID := middleware.GetUserID(r.Context())
	user, err := s.store.UpdatePreferences(r.Context(), userID, patch)
	if errors.Is(err, storage.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to update preferences", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}

	s.logger.Info("Preferences updated", "user_id", userID, "filters", len(user.ItemFilters), "radius_km", user.RadiusKm)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"ok": true, "user": newUserResponse(user)})
}
