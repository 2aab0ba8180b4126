// Package meeting implements meeting scheduling: validation, overlap
// prevention and change notification for calendar sync.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/meeting-scheduler/backend/internal/calendarsync"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const maxTitleLength = 255

// ErrNotFound is returned when the meeting does not exist.
var ErrNotFound = errors.New("meeting not found")

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Repository is the meeting storage the service writes through.
type Repository interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, id string) (*models.Meeting, error)
	List(ctx context.Context, f storage.MeetingFilter) ([]models.Meeting, error)
	ListOverlapping(ctx context.Context, start, end time.Time, location string, responsibleIDs []string, excludeID string) ([]models.Meeting, error)
	Update(ctx context.Context, m *models.Meeting) error
	Delete(ctx context.Context, id string) error
}

// UserLookup resolves users referenced by a meeting.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ContactLookup resolves external contacts selected for a meeting.
type ContactLookup interface {
	GetByID(ctx context.Context, id string) (*models.ExternalContact, error)
}

// ChangeObserver is told about every successful meeting write. Each method
// returns the sync action it queued.
type ChangeObserver interface {
	Created(ctx context.Context, m *models.Meeting) calendarsync.Action
	Updated(ctx context.Context, prev, cur *models.Meeting) calendarsync.Action
	Deleted(ctx context.Context, m *models.Meeting) calendarsync.Action
	Resync(ctx context.Context, m *models.Meeting) calendarsync.Action
}

// Input holds the fields of a new meeting.
type Input struct {
	UserID               string    `json:"user_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	Category             string    `json:"category"`
	Visibility           string    `json:"visibility"`
	StartAt              time.Time `json:"start_at"`
	EndAt                time.Time `json:"end_at"`
	Status               string    `json:"status"`
	ExternalContactEmail string    `json:"external_contact_email"`
	ExternalContactName  string    `json:"external_contact_name"`
	ResponsibleIDs       []string  `json:"responsible_ids"`
	ContactIDs           []string  `json:"contact_ids"`
}

// Patch holds a partial update. Nil fields are left unchanged; an empty
// string clears an optional field.
type Patch struct {
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	Location             *string    `json:"location"`
	Category             *string    `json:"category"`
	Visibility           *string    `json:"visibility"`
	StartAt              *time.Time `json:"start_at"`
	EndAt                *time.Time `json:"end_at"`
	Status               *string    `json:"status"`
	ExternalContactEmail *string    `json:"external_contact_email"`
	ExternalContactName  *string    `json:"external_contact_name"`
	ResponsibleIDs       *[]string  `json:"responsible_ids"`
	ContactIDs           *[]string  `json:"contact_ids"`
}

// Service coordinates meeting writes and the sync observer.
type Service struct {
	repo      Repository
	users     UserLookup
	contacts  ContactLookup
	observer  ChangeObserver
	conflicts *ConflictChecker
}

// NewService creates a meeting service.
func NewService(repo Repository, users UserLookup, contacts ContactLookup, observer ChangeObserver) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		contacts:  contacts,
		observer:  observer,
		conflicts: NewConflictChecker(repo.ListOverlapping),
	}
}

// Create validates and stores a new meeting, then notifies the observer.
func (s *Service) Create(ctx context.Context, in Input) (*models.Meeting, error) {
	m := &models.Meeting{
		UserID:               strings.TrimSpace(in.UserID),
		Title:                strings.TrimSpace(in.Title),
		Description:          models.OptionalString(in.Description),
		Location:             models.OptionalString(in.Location),
		Category:             models.OptionalString(in.Category),
		Visibility:           in.Visibility,
		StartAt:              in.StartAt,
		EndAt:                in.EndAt,
		Status:               in.Status,
		ExternalContactEmail: models.OptionalString(in.ExternalContactEmail),
		ExternalContactName:  models.OptionalString(in.ExternalContactName),
		ResponsibleIDs:       uniqueIDs(in.ResponsibleIDs),
		ContactIDs:           uniqueIDs(in.ContactIDs),
	}
	if m.Visibility == "" {
		m.Visibility = models.VisibilityPrivate
	}
	if m.Status == "" {
		m.Status = models.MeetingStatusPending
	}
	if len(m.ResponsibleIDs) == 0 && m.UserID != "" {
		m.ResponsibleIDs = []string{m.UserID}
	}

	contacts, err := s.lookupContacts(ctx, m.ContactIDs)
	if err != nil {
		return nil, err
	}
	if !m.HasExternalContact() {
		fillExternalContact(m, contacts, m.ExternalContactName == nil)
	}

	if err := s.validate(ctx, m); err != nil {
		return nil, err
	}
	if err := s.conflicts.Check(ctx, m); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating meeting: %w", err)
	}

	s.observer.Created(ctx, m)
	return m, nil
}

// Update applies a patch to an existing meeting, then notifies the observer
// with the before and after states.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*models.Meeting, error) {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cur := prev.Clone()
	applyPatch(cur, p)

	if p.ContactIDs != nil {
		contacts, err := s.lookupContacts(ctx, cur.ContactIDs)
		if err != nil {
			return nil, err
		}
		if p.ExternalContactEmail == nil && !cur.HasExternalContact() {
			fillExternalContact(cur, contacts, p.ExternalContactName == nil)
		}
	}

	if err := s.validate(ctx, cur); err != nil {
		return nil, err
	}
	if err := s.conflicts.Check(ctx, cur); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, cur); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating meeting: %w", err)
	}

	s.observer.Updated(ctx, prev, cur)
	return cur, nil
}

// Delete removes a meeting, then notifies the observer with its last state.
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting meeting: %w", err)
	}

	s.observer.Deleted(ctx, m)
	return nil
}

// Get returns a meeting or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting meeting: %w", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// List returns meetings matching the filter.
func (s *Service) List(ctx context.Context, f storage.MeetingFilter) ([]models.Meeting, error) {
	if f.Status != "" && !models.IsValidMeetingStatus(f.Status) {
		return nil, invalid("status", "unknown status %q", f.Status)
	}
	meetings, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}

// RequestSync queues a manual re-sync of the meeting's remote event.
func (s *Service) RequestSync(ctx context.Context, id string) (calendarsync.Action, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return calendarsync.ActionNone, err
	}
	return s.observer.Resync(ctx, m), nil
}

func (s *Service) validate(ctx context.Context, m *models.Meeting) error {
	if m.Title == "" {
		return invalid("title", "is required")
	}
	if len(m.Title) > maxTitleLength {
		return invalid("title", "must be at most %d characters", maxTitleLength)
	}
	if m.UserID == "" {
		return invalid("user_id", "is required")
	}
	if m.StartAt.IsZero() {
		return invalid("start_at", "is required")
	}
	if m.EndAt.IsZero() {
		return invalid("end_at", "is required")
	}
	if !m.EndAt.After(m.StartAt) {
		return invalid("end_at", "must be after the start time")
	}
	if !models.IsValidMeetingStatus(m.Status) {
		return invalid("status", "unknown status %q", m.Status)
	}
	if !models.IsValidVisibility(m.Visibility) {
		return invalid("visibility", "unknown visibility %q", m.Visibility)
	}
	if email := models.Value(m.ExternalContactEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return invalid("external_contact_email", "is not a valid email address")
		}
	}

	owner, err := s.users.GetByID(ctx, m.UserID)
	if err != nil {
		return fmt.Errorf("getting owner: %w", err)
	}
	if owner == nil {
		return invalid("user_id", "unknown user %q", m.UserID)
	}

	for _, id := range m.ResponsibleIDs {
		if id == m.UserID {
			continue
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("getting responsible: %w", err)
		}
		if u == nil {
			return invalid("responsible_ids", "unknown user %q", id)
		}
	}

	return nil
}

// lookupContacts loads the selected contacts in selection order.
func (s *Service) lookupContacts(ctx context.Context, ids []string) ([]*models.ExternalContact, error) {
	contacts := make([]*models.ExternalContact, 0, len(ids))
	for _, id := range ids {
		c, err := s.contacts.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("getting contact: %w", err)
		}
		if c == nil {
			return nil, invalid("contact_ids", "unknown contact %q", id)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// fillExternalContact copies the first selected contact onto the meeting's
// external contact fields. The name is only copied when withName is set.
func fillExternalContact(m *models.Meeting, contacts []*models.ExternalContact, withName bool) {
	if len(contacts) == 0 {
		return
	}
	m.ExternalContactEmail = models.OptionalString(contacts[0].Email)
	if withName {
		m.ExternalContactName = models.OptionalString(contacts[0].Name)
	}
}

func applyPatch(m *models.Meeting, p Patch) {
	if p.Title != nil {
		m.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		m.Description = models.OptionalString(*p.Description)
	}
	if p.Location != nil {
		m.Location = models.OptionalString(*p.Location)
	}
	if p.Category != nil {
		m.Category = models.OptionalString(*p.Category)
	}
	if p.Visibility != nil {
		m.Visibility = *p.Visibility
	}
	if p.StartAt != nil {
		m.StartAt = *p.StartAt
	}
	if p.EndAt != nil {
		m.EndAt = *p.EndAt
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ExternalContactEmail != nil {
		m.ExternalContactEmail = models.OptionalString(*p.ExternalContactEmail)
	}
	if p.ExternalContactName != nil {
		m.ExternalContactName = models.OptionalString(*p.ExternalContactName)
	}
	if p.ResponsibleIDs != nil {
		m.ResponsibleIDs = uniqueIDs(*p.ResponsibleIDs)
	}
	if p.ContactIDs != nil {
		m.ContactIDs = uniqueIDs(*p.ContactIDs)
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
