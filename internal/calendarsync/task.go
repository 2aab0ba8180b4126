package calendarsync

import (
	"encoding/json"
	"fmt"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// Task is one sync or delete attempt for one meeting.
type Task struct {
	ID       int64                  `json:"-"`
	Action   Action                 `json:"action"`
	UserID   string                 `json:"user_id"`
	Snapshot models.MeetingSnapshot `json:"meeting"`

	// Meeting is an optional in-process reference used when the task is
	// handled without crossing the queue. It is never serialized.
	Meeting *models.Meeting `json:"-"`
}

// NewTask snapshots the meeting for the given action.
func NewTask(m *models.Meeting, action Action) Task {
	return Task{
		Action:   action,
		UserID:   m.UserID,
		Snapshot: m.Snapshot(),
	}
}

// Record converts the task to a queue row for the named queue.
func (t Task) Record(queue string) (*models.SyncTask, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding task payload: %w", err)
	}

	return &models.SyncTask{
		Queue:     queue,
		Action:    string(t.Action),
		MeetingID: t.Snapshot.ID,
		UserID:    t.UserID,
		Payload:   string(payload),
	}, nil
}

// TaskFromRecord decodes a queue row back into a task.
func TaskFromRecord(rec *models.SyncTask) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(rec.Payload), &t); err != nil {
		return Task{}, fmt.Errorf("decoding task payload: %w", err)
	}

	t.ID = rec.ID
	if t.Action == "" {
		t.Action = Action(rec.Action)
	}
	if t.UserID == "" {
		t.UserID = rec.UserID
	}

	switch t.Action {
	case ActionSync, ActionDelete:
	default:
		return Task{}, fmt.Errorf("unknown task action %q", t.Action)
	}

	return t, nil
}
