package agenda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const productID = "-//Meeting Scheduler//Agenda//EN"

// ErrNoMeetings is returned when a feed would have no events.
var ErrNoMeetings = errors.New("no confirmed meetings")

// WriteICS writes the user's confirmed meetings as an iCalendar feed. An
// iCalendar object needs at least one component, so an empty feed is
// reported as ErrNoMeetings before anything is written.
func (a *Agenda) WriteICS(ctx context.Context, w io.Writer, userID string, now time.Time) error {
	meetings, err := a.store.List(ctx, storage.MeetingFilter{
		UserID: userID,
		Status: models.MeetingStatusConfirmed,
	})
	if err != nil {
		return fmt.Errorf("listing meetings: %w", err)
	}
	if len(meetings) == 0 {
		return ErrNoMeetings
	}

	cal := BuildCalendar(meetings, now)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// BuildCalendar converts meetings to an iCalendar document.
func BuildCalendar(meetings []models.Meeting, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for i := range meetings {
		cal.Children = append(cal.Children, meetingToEvent(&meetings[i], now).Component)
	}

	return cal
}

func meetingToEvent(m *models.Meeting, now time.Time) *ical.Event {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, m.ID+"@meeting-scheduler")
	vevent.Props.SetText(ical.PropSummary, m.Title)

	if d := models.Value(m.Description); d != "" {
		vevent.Props.SetText(ical.PropDescription, d)
	}
	if l := models.Value(m.Location); l != "" {
		vevent.Props.SetText(ical.PropLocation, l)
	}
	if c := models.Value(m.Category); c != "" {
		vevent.Props.SetText(ical.PropCategories, c)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStart, m.StartAt.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, m.EndAt.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	vevent.Props.SetText(ical.PropStatus, "CONFIRMED")

	if email := models.Value(m.ExternalContactEmail); email != "" {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + email
		if name := models.Value(m.ExternalContactName); name != "" {
			attendee.Params.Set(ical.ParamCommonName, name)
		}
		vevent.Props.Add(attendee)
	}

	return vevent
}
