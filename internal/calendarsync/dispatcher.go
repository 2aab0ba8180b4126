package calendarsync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// CalendarClient performs the remote calendar operations for a meeting.
type CalendarClient interface {
	SyncMeeting(ctx context.Context, m *models.Meeting) Outcome
	DeleteMeeting(ctx context.Context, m *models.Meeting) Outcome
}

// Notifier is told about the result of each handled task.
type Notifier interface {
	MeetingSyncResult(meeting *models.Meeting, action Action, outcome Outcome)
}

// Dispatcher resolves the meeting a task refers to and hands it to the
// calendar client.
type Dispatcher struct {
	client   CalendarClient
	meetings MeetingStore
	users    UserStore
	notifier Notifier
	logger   logrus.FieldLogger
}

// NewDispatcher creates a dispatcher. notifier may be nil.
func NewDispatcher(client CalendarClient, meetings MeetingStore, users UserStore, notifier Notifier, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		client:   client,
		meetings: meetings,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle runs one task. An unresolvable owner ends the task with
// OutcomeSkipped. Client failures are logged by the client and reported as
// OutcomeFailed; they are never returned as errors.
func (d *Dispatcher) Handle(ctx context.Context, t Task) Outcome {
	m := d.resolve(ctx, t)
	if m == nil {
		d.logger.WithFields(logrus.Fields{
			"task_id":    t.ID,
			"meeting_id": t.Snapshot.ID,
			"user_id":    t.UserID,
		}).Debug("No owner for calendar sync task, skipping")
		return OutcomeSkipped
	}

	var outcome Outcome
	if t.Action == ActionDelete {
		outcome = d.client.DeleteMeeting(ctx, m)
	} else {
		outcome = d.client.SyncMeeting(ctx, m)
	}

	d.logger.WithFields(logrus.Fields{
		"task_id":    t.ID,
		"meeting_id": m.ID,
		"user_id":    m.UserID,
		"action":     t.Action,
		"outcome":    outcome,
	}).Debug("Calendar sync task handled")

	if d.notifier != nil && outcome != OutcomeSkipped {
		d.notifier.MeetingSyncResult(m, t.Action, outcome)
	}

	return outcome
}

// resolve finds the freshest view of the task's meeting with its owner
// attached, or nil when no owner can be found.
func (d *Dispatcher) resolve(ctx context.Context, t Task) *models.Meeting {
	if t.Meeting != nil && t.Meeting.User != nil {
		return t.Meeting
	}

	fields := logrus.Fields{"task_id": t.ID, "meeting_id": t.Snapshot.ID, "user_id": t.UserID}

	if t.Snapshot.ID != "" {
		m, err := d.meetings.GetByID(ctx, t.Snapshot.ID)
		if err != nil {
			d.logger.WithFields(fields).WithError(err).Warn("Failed to load meeting for calendar sync")
		}
		if m != nil {
			if m.User == nil {
				m.User = d.lookupUser(ctx, m.UserID, fields)
			}
			if m.User != nil {
				return m
			}
		}
	}

	m := t.Snapshot.Meeting()
	userID := t.UserID
	if userID == "" {
		userID = m.UserID
	}
	m.User = d.lookupUser(ctx, userID, fields)
	if m.User == nil {
		return nil
	}
	return m
}

func (d *Dispatcher) lookupUser(ctx context.Context, id string, fields logrus.Fields) *models.User {
	if id == "" {
		return nil
	}
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		d.logger.WithFields(fields).WithError(err).Warn("Failed to load user for calendar sync")
		return nil
	}
	return u
}
