package handlers

import (
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const (
	defaultTaskLimit = 50
	maxTaskLimit     = 500
)

// ListSyncTasks returns recent calendar sync tasks, newest first.
func ListSyncTasks(tasks *storage.TaskRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := q.Get("status")

		switch status {
		case "", models.TaskStatusPending, models.TaskStatusRunning, models.TaskStatusDone, models.TaskStatusFailed:
		default:
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid status. Must be: pending, running, done, or failed")
			return
		}

		limit := defaultTaskLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid limit")
				return
			}
			limit = min(n, maxTaskLimit)
		}

		list, err := tasks.List(r.Context(), status, q.Get("meeting_id"), limit)
		if err != nil {
			log.WithError(err).Error("Failed to list sync tasks")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list sync tasks")
			return
		}
		if list == nil {
			list = []models.SyncTask{}
		}

		middleware.WriteJSON(w, http.StatusOK, list)
	}
}
