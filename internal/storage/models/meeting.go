// Package models contains the domain models for the application.
package models

import (
	"strings"
	"time"
)

// Meeting status constants
const (
	MeetingStatusPending   = "pending"
	MeetingStatusConfirmed = "confirmed"
	MeetingStatusCancelled = "cancelled"
)

// Meeting visibility constants
const (
	VisibilityPrivate      = "private"      // Participants only
	VisibilityTeam         = "team"         // Internal users
	VisibilityOrganization = "organization" // Whole organization
)

// Meeting is a scheduled meeting owned by a user, optionally mirrored to the
// owner's external calendar.
type Meeting struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Title                string     `json:"title"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Category             *string    `json:"category,omitempty"`
	Visibility           string     `json:"visibility"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	Status               string     `json:"status"`
	ExternalContactEmail *string    `json:"external_contact_email,omitempty"`
	ExternalContactName  *string    `json:"external_contact_name,omitempty"`
	RemoteEventID        *string    `json:"remote_event_id,omitempty"`
	SyncedAt             *time.Time `json:"synced_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// ResponsibleIDs lists the internal users responsible for the meeting.
	ResponsibleIDs []string `json:"responsible_ids"`

	// ContactIDs lists the external contacts linked to the meeting.
	ContactIDs []string `json:"contact_ids"`

	// User is the owning user when it has been loaded alongside the meeting.
	User *User `json:"-"`

	// Persisted is true when the meeting was read from storage. Meetings rebuilt
	// from a task snapshot are transient and never written back.
	Persisted bool `json:"-"`
}

// IsConfirmed reports whether the meeting status is confirmed.
func (m *Meeting) IsConfirmed() bool {
	return m.Status == MeetingStatusConfirmed
}

// HasExternalContact reports whether an external contact email is present.
func (m *Meeting) HasExternalContact() bool {
	return Value(m.ExternalContactEmail) != ""
}

// ShouldSync reports whether the meeting qualifies for the external calendar.
func (m *Meeting) ShouldSync() bool {
	return m.IsConfirmed() && m.HasExternalContact()
}

// HasRemoteEvent reports whether a remote calendar event id is stored.
func (m *Meeting) HasRemoteEvent() bool {
	return Value(m.RemoteEventID) != ""
}

// Clone returns a copy of the meeting that shares no pointers with the original.
func (m *Meeting) Clone() *Meeting {
	c := *m
	c.Description = clonePtr(m.Description)
	c.Location = clonePtr(m.Location)
	c.Category = clonePtr(m.Category)
	c.ExternalContactEmail = clonePtr(m.ExternalContactEmail)
	c.ExternalContactName = clonePtr(m.ExternalContactName)
	c.RemoteEventID = clonePtr(m.RemoteEventID)
	c.SyncedAt = clonePtr(m.SyncedAt)
	if m.ResponsibleIDs != nil {
		c.ResponsibleIDs = append([]string(nil), m.ResponsibleIDs...)
	}
	if m.ContactIDs != nil {
		c.ContactIDs = append([]string(nil), m.ContactIDs...)
	}
	return &c
}

// Overlaps reports whether the meeting's time window intersects [start, end).
func (m *Meeting) Overlaps(start, end time.Time) bool {
	return m.StartAt.Before(end) && m.EndAt.After(start)
}

// IsValidMeetingStatus returns true for a known status value.
func IsValidMeetingStatus(status string) bool {
	switch status {
	case MeetingStatusPending, MeetingStatusConfirmed, MeetingStatusCancelled:
		return true
	}
	return false
}

// IsValidVisibility returns true for a known visibility value.
func IsValidVisibility(v string) bool {
	switch v {
	case VisibilityPrivate, VisibilityTeam, VisibilityOrganization:
		return true
	}
	return false
}

// Value dereferences an optional string, treating nil as empty.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OptionalString returns nil for blank input and a trimmed pointer otherwise.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
