package calendarsync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// Enqueuer accepts tasks for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) error
}

// Observer turns meeting lifecycle events into queued sync tasks. The meeting
// service calls it after each successful write. Each method returns the action
// it queued, or ActionNone when nothing was queued.
type Observer struct {
	queue  Enqueuer
	logger logrus.FieldLogger
}

// NewObserver creates an observer that enqueues onto queue. A nil logger uses
// the standard logrus logger.
func NewObserver(queue Enqueuer, logger logrus.FieldLogger) *Observer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Observer{queue: queue, logger: logger}
}

// Created enqueues a sync when the new meeting already qualifies.
func (o *Observer) Created(ctx context.Context, m *models.Meeting) Action {
	if !m.ShouldSync() {
		return ActionNone
	}
	return o.enqueue(ctx, m, ActionSync)
}

// Updated applies the eligibility policy to the before and after states.
func (o *Observer) Updated(ctx context.Context, prev, cur *models.Meeting) Action {
	action := Decide(prev, cur)
	if action == ActionNone {
		return ActionNone
	}
	return o.enqueue(ctx, cur, action)
}

// Deleted always enqueues a delete. Whether a remote event exists is decided
// when the task runs.
func (o *Observer) Deleted(ctx context.Context, m *models.Meeting) Action {
	return o.enqueue(ctx, m, ActionDelete)
}

// enqueue queues the task and returns its action. A failure is logged and
// reported as ActionNone; it never reaches the meeting write.
func (o *Observer) enqueue(ctx context.Context, m *models.Meeting, action Action) Action {
	if err := o.queue.Enqueue(ctx, NewTask(m, action)); err != nil {
		o.logger.WithFields(logrus.Fields{
			"meeting_id": m.ID,
			"user_id":    m.UserID,
			"action":     action,
		}).WithError(err).Error("Failed to enqueue calendar sync task")
		return ActionNone
	}
	return action
}

// Resync enqueues a fresh sync for a qualifying meeting. A meeting that no
// longer qualifies but still holds a remote event gets a delete instead.
func (o *Observer) Resync(ctx context.Context, m *models.Meeting) Action {
	switch {
	case m.ShouldSync():
		return o.enqueue(ctx, m, ActionSync)
	case m.HasRemoteEvent():
		return o.enqueue(ctx, m, ActionDelete)
	}
	return ActionNone
}
