package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/api/middleware"
	"github.com/meeting-scheduler/backend/internal/meeting"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const maxContactResults = 50

// ContactRequest is the body for creating or replacing a contact.
type ContactRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Position string `json:"position"`
	Company  string `json:"company"`
}

func (req ContactRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "Name is required"
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return "A valid email is required"
	}
	return ""
}

func (req ContactRequest) apply(c *models.ExternalContact) {
	c.Name = strings.TrimSpace(req.Name)
	c.Email = strings.TrimSpace(req.Email)
	c.Phone = models.OptionalString(req.Phone)
	c.Position = models.OptionalString(req.Position)
	c.Company = models.OptionalString(req.Company)
}

// ListContacts searches the contact directory. q matches name, email or
// company; exclude takes comma separated IDs already selected.
func ListContacts(contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := maxContactResults
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid limit")
				return
			}
			limit = min(n, maxContactResults)
		}

		var exclude []string
		if v := q.Get("exclude"); v != "" {
			exclude = strings.Split(v, ",")
		}

		list, err := contacts.Search(r.Context(), q.Get("q"), exclude, limit)
		if err != nil {
			log.WithError(err).Error("Failed to list contacts")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list contacts")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// CreateContact adds a contact to the directory.
func CreateContact(contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		c := &models.ExternalContact{}
		req.apply(c)
		if err := contacts.Create(r.Context(), c); err != nil {
			log.WithError(err).Error("Failed to create contact")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create contact")
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, c)
	}
}

// GetContact returns a single contact by ID.
func GetContact(contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := contacts.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			log.WithError(err).Error("Failed to get contact")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to get contact")
			return
		}
		if c == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Contact not found")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, c)
	}
}

// UpdateContact replaces a contact's details.
func UpdateContact(contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		c, err := contacts.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			log.WithError(err).Error("Failed to get contact")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update contact")
			return
		}
		if c == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Contact not found")
			return
		}

		req.apply(c)
		if err := contacts.Update(r.Context(), c); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Contact not found")
				return
			}
			log.WithError(err).Error("Failed to update contact")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update contact")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, c)
	}
}

// DeleteContact removes a contact from the directory and unlinks it from
// meetings.
func DeleteContact(contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := contacts.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Contact not found")
				return
			}
			log.WithError(err).Error("Failed to delete contact")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete contact")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ListMeetingContacts returns the contacts linked to a meeting.
func ListMeetingContacts(svc *meeting.Service, contacts *storage.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeMeetingError(w, err, "Failed to list meeting contacts")
			return
		}

		list, err := contacts.ListForMeeting(r.Context(), m.ID)
		if err != nil {
			log.WithError(err).Error("Failed to list meeting contacts")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list meeting contacts")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, list)
	}
}
