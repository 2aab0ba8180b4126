package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const meetingColumns = `
	id, user_id, title, description, location, category, visibility, start_at, end_at,
	status, external_contact_email, external_contact_name, remote_event_id, synced_at,
	created_at, updated_at`

// MeetingFilter narrows List results. Zero values are ignored.
type MeetingFilter struct {
	UserID   string
	Status   string
	Category string
	From     time.Time
	To       time.Time
}

// MeetingRepository provides data access for meetings.
type MeetingRepository struct {
	BaseRepository
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(db *DB) *MeetingRepository {
	return &MeetingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new meeting together with its responsibles and contacts.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = GenerateID()
	}
	m.CreatedAt = r.Now()
	m.UpdatedAt = m.CreatedAt
	m.StartAt = dbTime(m.StartAt)
	m.EndAt = dbTime(m.EndAt)

	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meetings (`+meetingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.ID, m.UserID, m.Title, m.Description, m.Location, m.Category, m.Visibility,
			m.StartAt, m.EndAt, m.Status, m.ExternalContactEmail, m.ExternalContactName,
			m.RemoteEventID, dbTimePtr(m.SyncedAt), m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting meeting: %w", err)
		}
		return replaceLinks(ctx, tx, m)
	})
	if err != nil {
		return err
	}

	m.Persisted = true
	return nil
}

// GetByID retrieves a meeting by its ID. It returns nil when no row exists.
func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := scanMeeting(r.DB().QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying meeting: %w", err)
	}

	if err := r.loadLinks(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// List retrieves meetings matching the filter ordered by start time.
func (r *MeetingRepository) List(ctx context.Context, f MeetingFilter) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE 1=1`
	var args []any

	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		query += " AND end_at > ?"
		args = append(args, dbTime(f.From))
	}
	if !f.To.IsZero() {
		query += " AND start_at < ?"
		args = append(args, dbTime(f.To))
	}
	query += " ORDER BY start_at, title"

	return r.query(ctx, query, args...)
}

// ListOverlapping returns meetings intersecting [start, end) that share the
// location or any of the responsible users. The meeting excludeID is skipped.
func (r *MeetingRepository) ListOverlapping(ctx context.Context, start, end time.Time, location string, responsibleIDs []string, excludeID string) ([]models.Meeting, error) {
	if location == "" && len(responsibleIDs) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any

	if location != "" {
		conds = append(conds, "location = ?")
		args = append(args, location)
	}
	if len(responsibleIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(responsibleIDs)), ",")
		conds = append(conds, `id IN (
			SELECT meeting_id FROM meeting_responsibles WHERE user_id IN (`+placeholders+`))`)
		for _, id := range responsibleIDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings
		WHERE (` + strings.Join(conds, " OR ") + `)
		AND start_at < ? AND end_at > ? AND id != ? AND status != ?
		ORDER BY start_at`
	args = append(args, dbTime(end), dbTime(start), excludeID, models.MeetingStatusCancelled)

	return r.query(ctx, query, args...)
}

// Update writes the editable fields, responsibles and contacts of an existing meeting.
// Sync fields are owned by UpdateSyncState.
func (r *MeetingRepository) Update(ctx context.Context, m *models.Meeting) error {
	m.UpdatedAt = r.Now()
	m.StartAt = dbTime(m.StartAt)
	m.EndAt = dbTime(m.EndAt)

	return r.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE meetings SET
				title = ?, description = ?, location = ?, category = ?, visibility = ?,
				start_at = ?, end_at = ?, status = ?, external_contact_email = ?,
				external_contact_name = ?, updated_at = ?
			WHERE id = ?
		`,
			m.Title, m.Description, m.Location, m.Category, m.Visibility,
			m.StartAt, m.EndAt, m.Status, m.ExternalContactEmail,
			m.ExternalContactName, m.UpdatedAt, m.ID,
		)
		if err != nil {
			return fmt.Errorf("updating meeting: %w", err)
		}
		if err := affected(result); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, m)
	})
}

// UpdateSyncState stores the remote event id and sync timestamp in a single write.
func (r *MeetingRepository) UpdateSyncState(ctx context.Context, id string, remoteEventID *string, syncedAt *time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE meetings SET remote_event_id = ?, synced_at = ? WHERE id = ?
	`, remoteEventID, dbTimePtr(syncedAt), id)
	if err != nil {
		return fmt.Errorf("updating meeting sync state: %w", err)
	}
	return affected(result)
}

// Delete removes a meeting by ID.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM meetings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting meeting: %w", err)
	}
	return affected(result)
}

// GetResponsibles returns the user IDs responsible for a meeting.
func (r *MeetingRepository) GetResponsibles(ctx context.Context, meetingID string) ([]string, error) {
	return r.linkedIDs(ctx, responsibleLinks, meetingID)
}

// GetContacts returns the external contact IDs linked to a meeting.
func (r *MeetingRepository) GetContacts(ctx context.Context, meetingID string) ([]string, error) {
	return r.linkedIDs(ctx, contactLinks, meetingID)
}

func (r *MeetingRepository) loadLinks(ctx context.Context, m *models.Meeting) error {
	var err error
	if m.ResponsibleIDs, err = r.GetResponsibles(ctx, m.ID); err != nil {
		return err
	}
	m.ContactIDs, err = r.GetContacts(ctx, m.ID)
	return err
}

func (r *MeetingRepository) linkedIDs(ctx context.Context, l link, meetingID string) ([]string, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+l.column+` FROM `+l.table+` WHERE meeting_id = ? ORDER BY `+l.column, meetingID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", l.table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", l.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Categories returns the distinct non-empty categories in use.
func (r *MeetingRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT DISTINCT category FROM meetings
		WHERE category IS NOT NULL AND category != ''
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Count returns the number of meetings, optionally only those with a remote event.
func (r *MeetingRepository) Count(ctx context.Context, syncedOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM meetings"
	if syncedOnly {
		query += " WHERE remote_event_id IS NOT NULL"
	}
	var n int
	if err := r.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting meetings: %w", err)
	}
	return n, nil
}

func (r *MeetingRepository) query(ctx context.Context, query string, args ...any) ([]models.Meeting, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying meetings: %w", err)
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range meetings {
		if err := r.loadLinks(ctx, &meetings[i]); err != nil {
			return nil, err
		}
	}

	return meetings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*models.Meeting, error) {
	m := &models.Meeting{Persisted: true}
	err := row.Scan(
		&m.ID, &m.UserID, &m.Title, &m.Description, &m.Location, &m.Category, &m.Visibility,
		&m.StartAt, &m.EndAt, &m.Status, &m.ExternalContactEmail, &m.ExternalContactName,
		&m.RemoteEventID, &m.SyncedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// link is a join table from meetings to another entity.
type link struct {
	table  string
	column string
}

var (
	responsibleLinks = link{table: "meeting_responsibles", column: "user_id"}
	contactLinks     = link{table: "meeting_contacts", column: "contact_id"}
)

func replaceLinks(ctx context.Context, tx *sql.Tx, m *models.Meeting) error {
	if err := replaceLinked(ctx, tx, responsibleLinks, m.ID, m.ResponsibleIDs); err != nil {
		return err
	}
	return replaceLinked(ctx, tx, contactLinks, m.ID, m.ContactIDs)
}

func replaceLinked(ctx context.Context, tx *sql.Tx, l link, meetingID string, ids []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.table+" WHERE meeting_id = ?", meetingID); err != nil {
		return fmt.Errorf("deleting %s: %w", l.table, err)
	}

	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+l.table+" (meeting_id, "+l.column+") VALUES (?, ?)", meetingID, id)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", l.table, err)
		}
	}

	return nil
}
