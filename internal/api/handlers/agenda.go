package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/agenda"
	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/storage"
)

// GetAgenda returns the week view around ?date=YYYY-MM-DD (default today),
// optionally filtered by ?category=.
func GetAgenda(ag *agenda.Agenda) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := ag.ParseDate(q.Get("date"), time.Now())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid date. Use YYYY-MM-DD")
			return
		}

		week, err := ag.Week(r.Context(), date, q.Get("category"))
		if err != nil {
			log.WithError(err).Error("Failed to build agenda")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to build agenda")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, week)
	}
}

// UserAgendaICS serves a user's confirmed meetings as an iCalendar feed.
func UserAgendaICS(ag *agenda.Agenda, users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		u, err := users.GetByID(ctx, id)
		if err != nil {
			log.WithError(err).Error("Failed to get user")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to build calendar feed")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		var buf bytes.Buffer
		if err := ag.WriteICS(ctx, &buf, u.ID, time.Now()); err != nil {
			if errors.Is(err, agenda.ErrNoMeetings) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User has no confirmed meetings")
				return
			}
			log.WithError(err).Error("Failed to build calendar feed")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to build calendar feed")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
		w.Write(buf.Bytes())
	}
}
