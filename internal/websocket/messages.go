package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeMeetingSynced     MessageType = "meeting.synced"
	TypeMeetingUnsynced   MessageType = "meeting.unsynced"
	TypeMeetingSyncFailed MessageType = "meeting.sync_failed"
	TypeNotification      MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// MeetingSyncPayload is the payload for meeting.synced and meeting.unsynced events.
type MeetingSyncPayload struct {
	MeetingID     string     `json:"meeting_id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Outcome       string     `json:"outcome"`
	RemoteEventID string     `json:"remote_event_id,omitempty"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
}

// MeetingSyncFailedPayload is the payload for meeting.sync_failed events.
type MeetingSyncFailedPayload struct {
	MeetingID string `json:"meeting_id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Action    string `json:"action"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
