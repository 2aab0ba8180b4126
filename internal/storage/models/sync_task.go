package models

import (
	"time"
)

// Sync task action constants
const (
	SyncActionSync   = "sync"
	SyncActionDelete = "delete"
)

// Sync task status constants
const (
	TaskStatusPending = "pending" // Waiting for a worker
	TaskStatusRunning = "running" // Claimed by a worker
	TaskStatusDone    = "done"    // Handled without a remote failure
	TaskStatusFailed  = "failed"  // Remote call failed or the task was unreadable
)

// SyncTask is a durable queue row describing one sync or delete attempt.
type SyncTask struct {
	ID         int64      `json:"id"`
	Queue      string     `json:"queue"`
	Action     string     `json:"action"`
	MeetingID  string     `json:"meeting_id"`
	UserID     string     `json:"user_id"`
	Payload    string     `json:"payload"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  *string    `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MeetingSnapshot is the serializable copy of a meeting carried by a task.
type MeetingSnapshot struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Title                string     `json:"title"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Category             *string    `json:"category,omitempty"`
	Visibility           string     `json:"visibility,omitempty"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	Status               string     `json:"status"`
	ExternalContactEmail *string    `json:"external_contact_email,omitempty"`
	ExternalContactName  *string    `json:"external_contact_name,omitempty"`
	RemoteEventID        *string    `json:"remote_event_id,omitempty"`
	SyncedAt             *time.Time `json:"synced_at,omitempty"`
}

// Snapshot copies the meeting's own fields, leaving relations behind.
func (m *Meeting) Snapshot() MeetingSnapshot {
	c := m.Clone()
	return MeetingSnapshot{
		ID:                   c.ID,
		UserID:               c.UserID,
		Title:                c.Title,
		Description:          c.Description,
		Location:             c.Location,
		Category:             c.Category,
		Visibility:           c.Visibility,
		StartAt:              c.StartAt,
		EndAt:                c.EndAt,
		Status:               c.Status,
		ExternalContactEmail: c.ExternalContactEmail,
		ExternalContactName:  c.ExternalContactName,
		RemoteEventID:        c.RemoteEventID,
		SyncedAt:             c.SyncedAt,
	}
}

// Meeting rebuilds a transient meeting from the snapshot.
func (s MeetingSnapshot) Meeting() *Meeting {
	m := &Meeting{
		ID:                   s.ID,
		UserID:               s.UserID,
		Title:                s.Title,
		Description:          s.Description,
		Location:             s.Location,
		Category:             s.Category,
		Visibility:           s.Visibility,
		StartAt:              s.StartAt,
		EndAt:                s.EndAt,
		Status:               s.Status,
		ExternalContactEmail: s.ExternalContactEmail,
		ExternalContactName:  s.ExternalContactName,
		RemoteEventID:        s.RemoteEventID,
		SyncedAt:             s.SyncedAt,
	}
	return m.Clone()
}
