package calendarsync

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// remoteEventStatus is the provider status every mirrored event carries.
const remoteEventStatus = "confirmed"

// BuildEvent maps a meeting to the provider event payload. Times are
// expressed in tz and empty text fields are left out of the request.
func BuildEvent(m *models.Meeting, tz *time.Location) *calendar.Event {
	if tz == nil {
		tz = time.UTC
	}

	event := &calendar.Event{
		Summary:     m.Title,
		Description: models.Value(m.Description),
		Location:    models.Value(m.Location),
		Start:       eventTime(m.StartAt, tz),
		End:         eventTime(m.EndAt, tz),
		Status:      remoteEventStatus,
	}

	if m.HasExternalContact() {
		event.Attendees = []*calendar.EventAttendee{{
			Email:       models.Value(m.ExternalContactEmail),
			DisplayName: models.Value(m.ExternalContactName),
		}}
	}

	return event
}

func eventTime(t time.Time, tz *time.Location) *calendar.EventDateTime {
	if t.IsZero() {
		return nil
	}
	return &calendar.EventDateTime{
		DateTime: t.In(tz).Format(time.RFC3339),
		TimeZone: tz.String(),
	}
}
