package devserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mmynk/foodguardian/internal/middleware"
	"github.com/mmynk/foodguardian/internal/models"
)

type storeRequest struct {
	StoreID  string             `json:"store_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Phone    string             `json:"phone"`
	Location *models.Coordinate `json:"location"`
}

type storeResponse struct {
	StoreID  string            `json:"store_id"`
	Name     string            `json:"name"`
	Location models.Coordinate `json:"location"`
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Coordinate decoding rejects missing or out-of-range lat/lng.
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid store: "+err.Error())
		return
	}

	profile := models.StoreProfile{
		StoreID: strings.TrimSpace(req.StoreID),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
	}
	switch {
	case profile.StoreID == "":
		middleware.ErrorResponse(w, http.StatusBadRequest, "store_id required")
		return
	case profile.Name == "":
		middleware.ErrorResponse(w, http.StatusBadRequest, "name required")
		return
	case req.Location == nil:
		middleware.ErrorResponse(w, http.StatusBadRequest, "location must be {lat, lng}")
		return
	}
	profile.Location = *req.Location

	created, err := s.store.UpsertStore(r.Context(), &profile)
	if err != nil {
		s.logger.Error("Failed to save store", "store_id", profile.StoreID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to save store")
		return
	}

	resp := map[string]any{"ok": true, "store_id": profile.StoreID}
	if created {
		resp["created"] = true
	} else {
		resp["updated"] = true
	}
	s.logger.Info("Store saved", "store_id", profile.StoreID, "created", created)
	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.store.ListStores(r.Context())
	if err != nil {
		s.logger.Error("Failed to list stores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to list stores")
		return
	}

	out := make([]storeResponse, 0, len(stores))
	for _, st := range stores {
		out = append(out, storeResponse{StoreID: st.StoreID, Name: st.Name, Location: st.Location})
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"stores": out})
}
