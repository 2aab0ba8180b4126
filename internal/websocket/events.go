package websocket

import (
	log "github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/calendarsync"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// EventBroadcaster turns sync results into WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// MeetingSyncResult broadcasts the outcome of a handled sync task.
func (b *EventBroadcaster) MeetingSyncResult(m *models.Meeting, action calendarsync.Action, outcome calendarsync.Outcome) {
	switch outcome {
	case calendarsync.OutcomeCreated, calendarsync.OutcomeUpdated:
		b.broadcast(NewMessage(TypeMeetingSynced, MeetingSyncPayload{
			MeetingID:     m.ID,
			UserID:        m.UserID,
			Title:         m.Title,
			Outcome:       string(outcome),
			RemoteEventID: models.Value(m.RemoteEventID),
			SyncedAt:      m.SyncedAt,
		}))

	case calendarsync.OutcomeDeleted, calendarsync.OutcomeCleared:
		b.broadcast(NewMessage(TypeMeetingUnsynced, MeetingSyncPayload{
			MeetingID: m.ID,
			UserID:    m.UserID,
			Title:     m.Title,
			Outcome:   string(outcome),
		}))

	case calendarsync.OutcomeFailed:
		b.broadcast(NewMessage(TypeMeetingSyncFailed, MeetingSyncFailedPayload{
			MeetingID: m.ID,
			UserID:    m.UserID,
			Title:     m.Title,
			Action:    string(action),
		}))
	}
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
