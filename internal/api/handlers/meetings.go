package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/calendarsync"
	"github.com/meeting-scheduler/backend/internal/meeting"
	"github.com/meeting-scheduler/backend/internal/storage"
)

// SyncRequestResponse reports which calendar action a manual sync queued.
type SyncRequestResponse struct {
	MeetingID string `json:"meeting_id"`
	Action    string `json:"action"`
}

// ListMeetings returns meetings with optional filtering.
func ListMeetings(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := storage.MeetingFilter{
			UserID:   q.Get("user_id"),
			Status:   q.Get("status"),
			Category: q.Get("category"),
		}

		var err error
		if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid from. Use RFC3339 or YYYY-MM-DD")
			return
		}
		if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid to. Use RFC3339 or YYYY-MM-DD")
			return
		}

		meetings, err := svc.List(r.Context(), filter)
		if err != nil {
			writeMeetingError(w, err, "Failed to list meetings")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, meetings)
	}
}

// CreateMeeting schedules a new meeting.
func CreateMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req meeting.Input
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		m, err := svc.Create(r.Context(), req)
		if err != nil {
			writeMeetingError(w, err, "Failed to create meeting")
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, m)
	}
}

// GetMeeting returns a single meeting by ID.
func GetMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeMeetingError(w, err, "Failed to get meeting")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, m)
	}
}

// UpdateMeeting applies a partial update to a meeting.
func UpdateMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req meeting.Patch
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		m, err := svc.Update(r.Context(), mux.Vars(r)["id"], req)
		if err != nil {
			writeMeetingError(w, err, "Failed to update meeting")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, m)
	}
}

// DeleteMeeting removes a meeting.
func DeleteMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeMeetingError(w, err, "Failed to delete meeting")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SyncMeeting queues a manual calendar sync for a meeting.
func SyncMeeting(svc *meeting.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		action, err := svc.RequestSync(r.Context(), id)
		if err != nil {
			writeMeetingError(w, err, "Failed to queue calendar sync")
			return
		}

		status := http.StatusAccepted
		if action == calendarsync.ActionNone {
			status = http.StatusOK
		}
		middleware.WriteJSON(w, status, SyncRequestResponse{MeetingID: id, Action: string(action)})
	}
}

func writeMeetingError(w http.ResponseWriter, err error, message string) {
	var validationErr *meeting.ValidationError
	var overlapErr *meeting.OverlapError

	switch {
	case errors.Is(err, meeting.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Meeting not found")
	case errors.As(err, &validationErr):
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, validationErr.Error(), validationErr)
	case errors.As(err, &overlapErr):
		middleware.WriteErrorWithDetails(w, http.StatusConflict, middleware.ErrConflict,
			"There is already a meeting scheduled for the selected time with the same location or responsible",
			overlapErr.Conflicts)
	default:
		log.WithError(err).Error(message)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, message)
	}
}

// parseTimeParam accepts RFC3339 timestamps or plain dates. Empty is zero.
func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
