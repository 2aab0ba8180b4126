package handlers

import (
	"net/http"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/config"
)

// SettingsResponse represents the resolved, non-secret configuration.
type SettingsResponse struct {
	Timezone          string   `json:"timezone"`
	DefaultCalendarID string   `json:"default_calendar_id"`
	GoogleConfigured  bool     `json:"google_configured"`
	Queue             string   `json:"queue"`
	SyncWorkers       int      `json:"sync_workers"`
	SyncPollInterval  string   `json:"sync_poll_interval"`
	SyncStaleAfter    string   `json:"sync_stale_after"`
	SyncRetainDone    string   `json:"sync_retain_done"`
	CorporateDomains  []string `json:"corporate_domains"`
}

// GetSettings returns the settings the server was started with.
func GetSettings(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domains := cfg.CorporateDomains
		if domains == nil {
			domains = []string{}
		}

		middleware.WriteJSON(w, http.StatusOK, SettingsResponse{
			Timezone:          cfg.Timezone.String(),
			DefaultCalendarID: cfg.Google.DefaultCalendarID,
			GoogleConfigured:  cfg.GoogleConfigured(),
			Queue:             cfg.Queue.Name,
			SyncWorkers:       cfg.Queue.Workers,
			SyncPollInterval:  cfg.Queue.PollInterval.String(),
			SyncStaleAfter:    cfg.Queue.StaleAfter.String(),
			SyncRetainDone:    cfg.Queue.RetainDone.String(),
			CorporateDomains:  domains,
		})
	}
}
