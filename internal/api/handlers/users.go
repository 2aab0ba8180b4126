package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// UserResponse represents a user in API responses. Credentials are never
// returned; only whether a calendar account is connected.
type UserResponse struct {
	*models.User
	CalendarConnected bool `json:"calendar_connected"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{User: u, CalendarConnected: u.HasCalendarConnection()}
}

// ListUsers returns all users.
func ListUsers(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context())
		if err != nil {
			log.WithError(err).Error("Failed to list users")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list users")
			return
		}

		resp := make([]UserResponse, 0, len(list))
		for i := range list {
			resp = append(resp, newUserResponse(&list[i]))
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}

// CreateUser registers an internal user. Only corporate addresses are accepted.
func CreateUser(users *storage.UserRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)

		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "A valid email is required")
			return
		}
		if !cfg.IsCorporateEmail(req.Email) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Email must belong to a corporate domain")
			return
		}

		existing, err := users.GetByEmail(ctx, req.Email)
		if err != nil {
			log.WithError(err).Error("Failed to look up user")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create user")
			return
		}
		if existing != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "A user with this email already exists")
			return
		}

		u := &models.User{Name: req.Name, Email: req.Email}
		if err := users.Create(ctx, u); err != nil {
			log.WithError(err).Error("Failed to create user")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create user")
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, newUserResponse(u))
	}
}

// GetUser returns a single user by ID.
func GetUser(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			log.WithError(err).Error("Failed to get user")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to get user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, newUserResponse(u))
	}
}

// UpdateUserCalendar changes the user's calendar sync settings. Tokens are
// only replaced when provided; an explicit disconnect clears them.
func UpdateUserCalendar(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			CalendarSyncEnabled *bool      `json:"calendar_sync_enabled"`
			CalendarID          *string    `json:"calendar_id"`
			AccessToken         *string    `json:"access_token"`
			RefreshToken        *string    `json:"refresh_token"`
			TokenExpiresAt      *time.Time `json:"token_expires_at"`
			Disconnect          bool       `json:"disconnect"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		u, err := users.GetByID(ctx, mux.Vars(r)["id"])
		if err != nil {
			log.WithError(err).Error("Failed to get user")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update calendar settings")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		if req.CalendarSyncEnabled != nil {
			u.CalendarSyncEnabled = *req.CalendarSyncEnabled
		}
		if req.CalendarID != nil {
			u.CalendarID = models.OptionalString(*req.CalendarID)
		}
		if req.Disconnect {
			u.AccessToken = ""
			u.RefreshToken = ""
			u.TokenExpiresAt = nil
		}
		if req.AccessToken != nil {
			u.AccessToken = strings.TrimSpace(*req.AccessToken)
		}
		if req.RefreshToken != nil {
			u.RefreshToken = strings.TrimSpace(*req.RefreshToken)
		}
		if req.TokenExpiresAt != nil {
			u.TokenExpiresAt = req.TokenExpiresAt
		}

		if err := users.UpdateCalendarSettings(ctx, u); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
				return
			}
			log.WithError(err).Error("Failed to update calendar settings")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update calendar settings")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, newUserResponse(u))
	}
}
