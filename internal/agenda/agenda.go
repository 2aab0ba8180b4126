// Package agenda builds week views and iCalendar feeds of meetings.
package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const dateLayout = "2006-01-02"

// Store is the meeting storage the agenda reads.
type Store interface {
	List(ctx context.Context, f storage.MeetingFilter) ([]models.Meeting, error)
	Categories(ctx context.Context) ([]string, error)
}

// Day is one calendar day of a week view.
type Day struct {
	Date     string           `json:"date"`
	Weekday  string           `json:"weekday"`
	Meetings []models.Meeting `json:"meetings"`
}

// Week is a Monday to Sunday view of meetings.
type Week struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Previous   string   `json:"previous"`
	Next       string   `json:"next"`
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories"`
	Days       []Day    `json:"days"`
}

// Agenda reads meetings in the application timezone.
type Agenda struct {
	store Store
	tz    *time.Location
}

// New creates an agenda over store. A nil tz means UTC.
func New(store Store, tz *time.Location) *Agenda {
	if tz == nil {
		tz = time.UTC
	}
	return &Agenda{store: store, tz: tz}
}

// ParseDate parses a YYYY-MM-DD date in the agenda timezone. An empty string
// yields today.
func (a *Agenda) ParseDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.In(a.tz), nil
	}
	d, err := time.ParseInLocation(dateLayout, value, a.tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

// Week returns the week containing date, optionally narrowed to one category.
func (a *Agenda) Week(ctx context.Context, date time.Time, category string) (*Week, error) {
	start := StartOfWeek(date.In(a.tz))
	end := start.AddDate(0, 0, 7)

	meetings, err := a.store.List(ctx, storage.MeetingFilter{
		Category: category,
		From:     start,
		To:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("listing week meetings: %w", err)
	}

	categories, err := a.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	week := &Week{
		Start:      start.Format(dateLayout),
		End:        end.AddDate(0, 0, -1).Format(dateLayout),
		Previous:   start.AddDate(0, 0, -7).Format(dateLayout),
		Next:       end.Format(dateLayout),
		Category:   category,
		Categories: categories,
	}

	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format(dateLayout)
		index[key] = i
		week.Days = append(week.Days, Day{
			Date:     key,
			Weekday:  day.Weekday().String(),
			Meetings: []models.Meeting{},
		})
	}

	// Meetings are grouped by the local date they start on.
	for _, m := range meetings {
		key := m.StartAt.In(a.tz).Format(dateLayout)
		if i, ok := index[key]; ok {
			week.Days[i].Meetings = append(week.Days[i].Meetings, m)
		}
	}

	return week, nil
}

// StartOfWeek returns midnight of the Monday on or before t, in t's location.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
