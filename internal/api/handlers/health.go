// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
	"github.com/meeting-scheduler/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	GoogleConfigured  bool           `json:"google_configured"`
	Queue             string         `json:"queue"`
	UsersCount        int            `json:"users_count"`
	MeetingsCount     int            `json:"meetings_count"`
	SyncedMeetings    int            `json:"synced_meetings"`
	Tasks             map[string]int `json:"tasks"`
	PendingOperations int            `json:"pending_operations"`
	WebSocketClients  int            `json:"websocket_clients"`
}

// StatusDeps groups what the status handler reads.
type StatusDeps struct {
	Config   *config.Config
	Users    *storage.UserRepository
	Meetings *storage.MeetingRepository
	Tasks    *storage.TaskRepository
	Hub      *websocket.Hub
}

// Status returns a handler that provides system status information.
func Status(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{
			GoogleConfigured: deps.Config.GoogleConfigured(),
			Queue:            deps.Config.Queue.Name,
		}

		var err error
		if resp.UsersCount, err = deps.Users.Count(ctx); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count users")
			return
		}
		if resp.MeetingsCount, err = deps.Meetings.Count(ctx, false); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count meetings")
			return
		}
		if resp.SyncedMeetings, err = deps.Meetings.Count(ctx, true); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count meetings")
			return
		}
		if resp.Tasks, err = deps.Tasks.CountByStatus(ctx); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count sync tasks")
			return
		}
		resp.PendingOperations = resp.Tasks[models.TaskStatusPending] + resp.Tasks[models.TaskStatusRunning]

		if deps.Hub != nil {
			resp.WebSocketClients = deps.Hub.ClientCount()
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
