// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meeting-scheduler/backend/internal/agenda"
	"github.com/meeting-scheduler/backend/internal/api/handlers"
	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/meeting"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/websocket"
)

// Services groups the dependencies the handlers need.
type Services struct {
	Config      *config.Config
	DB          *storage.DB
	Hub         *websocket.Hub
	Meetings    *meeting.Service
	MeetingRepo *storage.MeetingRepository
	Users       *storage.UserRepository
	Contacts    *storage.ContactRepository
	Tasks       *storage.TaskRepository
	Agenda      *agenda.Agenda
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(handlers.StatusDeps{
		Config:   s.Config,
		Users:    s.Users,
		Meetings: s.MeetingRepo,
		Tasks:    s.Tasks,
		Hub:      s.Hub,
	})).Methods("GET")
	api.HandleFunc("/settings", handlers.GetSettings(s.Config)).Methods("GET")

	// WebSocket endpoint
	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")
	}

	// Meeting endpoints
	api.HandleFunc("/meetings", handlers.ListMeetings(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings", handlers.CreateMeeting(s.Meetings)).Methods("POST")
	api.HandleFunc("/meetings/{id}", handlers.GetMeeting(s.Meetings)).Methods("GET")
	api.HandleFunc("/meetings/{id}", handlers.UpdateMeeting(s.Meetings)).Methods("PATCH")
	api.HandleFunc("/meetings/{id}", handlers.DeleteMeeting(s.Meetings)).Methods("DELETE")
	api.HandleFunc("/meetings/{id}/sync", handlers.SyncMeeting(s.Meetings)).Methods("POST")

	// User endpoints
	api.HandleFunc("/users", handlers.ListUsers(s.Users)).Methods("GET")
	api.HandleFunc("/users", handlers.CreateUser(s.Users, s.Config)).Methods("POST")
	api.HandleFunc("/users/{id}", handlers.GetUser(s.Users)).Methods("GET")
	api.HandleFunc("/users/{id}/calendar", handlers.UpdateUserCalendar(s.Users)).Methods("PUT")
	api.HandleFunc("/users/{id}/agenda.ics", handlers.UserAgendaICS(s.Agenda, s.Users)).Methods("GET")

	// External contact directory
	api.HandleFunc("/contacts", handlers.ListContacts(s.Contacts)).Methods("GET")
	api.HandleFunc("/contacts", handlers.CreateContact(s.Contacts)).Methods("POST")
	api.HandleFunc("/contacts/{id}", handlers.GetContact(s.Contacts)).Methods("GET")
	api.HandleFunc("/contacts/{id}", handlers.UpdateContact(s.Contacts)).Methods("PUT")
	api.HandleFunc("/contacts/{id}", handlers.DeleteContact(s.Contacts)).Methods("DELETE")
	api.HandleFunc("/meetings/{id}/contacts", handlers.ListMeetingContacts(s.Meetings, s.Contacts)).Methods("GET")

	// Agenda and queue endpoints
	api.HandleFunc("/agenda", handlers.GetAgenda(s.Agenda)).Methods("GET")
	api.HandleFunc("/sync-tasks", handlers.ListSyncTasks(s.Tasks)).Methods("GET")

	// Serve static frontend files
	if s.Config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.Config.StaticDir)))
	}

	return r
}
