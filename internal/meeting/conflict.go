package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// ErrOverlap matches any *OverlapError.
var ErrOverlap = errors.New("meeting overlaps an existing meeting")

// Conflict describes one existing meeting that overlaps a candidate.
type Conflict struct {
	MeetingID          string    `json:"meeting_id"`
	Title              string    `json:"title"`
	Location           string    `json:"location,omitempty"`
	SharedResponsibles []string  `json:"shared_responsibles,omitempty"`
	OverlapStart       time.Time `json:"overlap_start"`
	OverlapEnd         time.Time `json:"overlap_end"`
}

// OverlapError is returned when a meeting would share its location or a
// responsible with another meeting at the same time.
type OverlapError struct {
	Conflicts []Conflict
}

func (e *OverlapError) Error() string {
	titles := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		titles = append(titles, c.Title)
	}
	return fmt.Sprintf("%s: %s", ErrOverlap, strings.Join(titles, ", "))
}

// Is lets errors.Is(err, ErrOverlap) match.
func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

type overlapFinder func(ctx context.Context, start, end time.Time, location string, responsibleIDs []string, excludeID string) ([]models.Meeting, error)

// ConflictChecker detects meetings that share a location or responsible
// within an overlapping time window.
type ConflictChecker struct {
	findOverlapping overlapFinder
}

// NewConflictChecker creates a checker backed by the given query.
func NewConflictChecker(find overlapFinder) *ConflictChecker {
	return &ConflictChecker{findOverlapping: find}
}

// CheckConflicts lists the meetings that conflict with candidate. Cancelled
// candidates never conflict.
func (c *ConflictChecker) CheckConflicts(ctx context.Context, candidate *models.Meeting) ([]Conflict, error) {
	if candidate.Status == models.MeetingStatusCancelled {
		return nil, nil
	}

	location := models.Value(candidate.Location)
	existing, err := c.findOverlapping(ctx, candidate.StartAt, candidate.EndAt, location, candidate.ResponsibleIDs, candidate.ID)
	if err != nil {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}

	var conflicts []Conflict
	for _, m := range existing {
		overlapStart := candidate.StartAt
		if m.StartAt.After(overlapStart) {
			overlapStart = m.StartAt
		}

		overlapEnd := candidate.EndAt
		if m.EndAt.Before(overlapEnd) {
			overlapEnd = m.EndAt
		}

		conflict := Conflict{
			MeetingID:          m.ID,
			Title:              m.Title,
			SharedResponsibles: intersect(candidate.ResponsibleIDs, m.ResponsibleIDs),
			OverlapStart:       overlapStart,
			OverlapEnd:         overlapEnd,
		}
		if location != "" && models.Value(m.Location) == location {
			conflict.Location = location
		}

		conflicts = append(conflicts, conflict)
	}

	return conflicts, nil
}

// Check returns an *OverlapError when candidate conflicts with any meeting.
func (c *ConflictChecker) Check(ctx context.Context, candidate *models.Meeting) error {
	conflicts, err := c.CheckConflicts(ctx, candidate)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &OverlapError{Conflicts: conflicts}
	}
	return nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, id := range b {
		set[id] = true
	}

	var out []string
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
