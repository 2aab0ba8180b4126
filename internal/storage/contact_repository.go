package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const contactColumns = `id, name, email, phone, position, company, created_at, updated_at`

// ContactRepository provides data access for the external contact directory.
type ContactRepository struct {
	BaseRepository
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new contact.
func (r *ContactRepository) Create(ctx context.Context, c *models.ExternalContact) error {
	if c.ID == "" {
		c.ID = GenerateID()
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = r.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO external_contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Email, c.Phone, c.Position, c.Company, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting contact: %w", err)
	}

	return nil
}

// GetByID retrieves a contact by ID. It returns nil when no row exists.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.ExternalContact, error) {
	c, err := scanContact(r.DB().QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM external_contacts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying contact: %w", err)
	}
	return c, nil
}

// Search returns contacts whose name, email or company contains term, ordered
// by name. An empty term lists everyone. IDs in exclude are left out and a
// positive limit caps the result.
func (r *ContactRepository) Search(ctx context.Context, term string, exclude []string, limit int) ([]models.ExternalContact, error) {
	query := `SELECT ` + contactColumns + ` FROM external_contacts WHERE 1=1`
	var args []any

	if term = strings.TrimSpace(term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query += " AND (LOWER(name) LIKE ? OR email LIKE ? OR LOWER(COALESCE(company, '')) LIKE ?)"
		args = append(args, like, like, like)
	}
	if len(exclude) > 0 {
		query += " AND id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(exclude)), ",") + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += " ORDER BY name, email"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(ctx, query, args...)
}

// ListForMeeting returns the contacts linked to a meeting ordered by name.
func (r *ContactRepository) ListForMeeting(ctx context.Context, meetingID string) ([]models.ExternalContact, error) {
	return r.query(ctx, `
		SELECT c.id, c.name, c.email, c.phone, c.position, c.company, c.created_at, c.updated_at
		FROM external_contacts c
		JOIN meeting_contacts mc ON mc.contact_id = c.id
		WHERE mc.meeting_id = ?
		ORDER BY c.name, c.email
	`, meetingID)
}

// Update writes the editable fields of an existing contact. Meetings that
// already copied the contact's email keep their own value.
func (r *ContactRepository) Update(ctx context.Context, c *models.ExternalContact) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE external_contacts SET
			name = ?, email = ?, phone = ?, position = ?, company = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Email, c.Phone, c.Position, c.Company, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("updating contact: %w", err)
	}
	return affected(result)
}

// Delete removes a contact and its meeting links.
func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM external_contacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return affected(result)
}

func (r *ContactRepository) query(ctx context.Context, query string, args ...any) ([]models.ExternalContact, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	contacts := []models.ExternalContact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (*models.ExternalContact, error) {
	c := &models.ExternalContact{}
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Position, &c.Company, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
