// Package calendarsync mirrors confirmed meetings with an external contact to
// the owner's Google Calendar through a durable task queue.
package calendarsync

import (
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// Action is the sync decision for a meeting mutation.
type Action string

const (
	ActionNone   Action = "none"
	ActionSync   Action = Action(models.SyncActionSync)
	ActionDelete Action = Action(models.SyncActionDelete)
)

// Decide compares a meeting before and after an update and returns the
// remote calendar action it requires. Losing eligibility always wins over a
// pending detail sync so no stale remote event is left behind.
func Decide(prev, cur *models.Meeting) Action {
	wasConfirmed := prev.IsConfirmed()
	isConfirmed := cur.IsConfirmed()

	if wasConfirmed && !isConfirmed {
		return ActionDelete
	}
	if prev.HasExternalContact() && !cur.HasExternalContact() {
		return ActionDelete
	}

	if !cur.ShouldSync() {
		return ActionNone
	}

	if !wasConfirmed && isConfirmed {
		return ActionSync
	}
	if syncableFieldsChanged(prev, cur) {
		return ActionSync
	}
	if !prev.HasExternalContact() && cur.HasExternalContact() {
		return ActionSync
	}

	return ActionNone
}

// syncableFieldsChanged reports whether any field mirrored to the remote event differs.
func syncableFieldsChanged(prev, cur *models.Meeting) bool {
	return prev.Title != cur.Title ||
		models.Value(prev.Description) != models.Value(cur.Description) ||
		models.Value(prev.Location) != models.Value(cur.Location) ||
		!prev.StartAt.Equal(cur.StartAt) ||
		!prev.EndAt.Equal(cur.EndAt) ||
		models.Value(prev.ExternalContactEmail) != models.Value(cur.ExternalContactEmail) ||
		models.Value(prev.ExternalContactName) != models.Value(cur.ExternalContactName)
}
