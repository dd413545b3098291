package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmynk/foodguardian/internal/auth"
	"github.com/mmynk/foodguardian/internal/middleware"
	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// userResponse is the public projection of an account.
type userResponse struct {
	ID          string             `json:"_id"`
	Email       string             `json:"email"`
	Notify      bool               `json:"notify"`
	Location    *models.Coordinate `json:"location"`
	RadiusKm    float64            `json:"radius_km"`
	ItemFilters []string           `json:"item_filters"`
	CreatedAt   int64              `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	filters := u.ItemFilters
	if filters == nil {
		filters = []string{}
	}
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Notify:      u.Notify,
		Location:    u.Location,
		RadiusKm:    u.RadiusKm,
		ItemFilters: filters,
		CreatedAt:   u.CreatedAt,
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrEmailExists):
		middleware.ErrorResponse(w, http.StatusConflict, "email already in use")
		return
	case err != nil:
		s.logger.Error("Registration failed", "email", req.Email, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.issueToken(w, user, http.StatusCreated)
	s.logger.Info("User registered", "user_id", user.ID, "email", user.Email)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("Login failed", "email", req.Email, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.issueToken(w, user, http.StatusOK)
}

func (s *Server) issueToken(w http.ResponseWriter, user *models.User, status int) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	middleware.JSONResponse(w, status, credentialsResponse{Token: token, UserID: user.ID})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if errors.Is(err, storage.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to load user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"user": newUserResponse(user)})
}
