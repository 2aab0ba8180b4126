package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const userColumns = `
	id, name, email, access_token, refresh_token, token_expires_at, calendar_id,
	calendar_sync_enabled, created_at, updated_at`

// UserRepository provides data access for users and their calendar credentials.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = GenerateID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.Now()
	u.UpdatedAt = u.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		u.ID, u.Name, u.Email, u.AccessToken, u.RefreshToken, dbTimePtr(u.TokenExpiresAt),
		u.CalendarID, u.CalendarSyncEnabled, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID. It returns nil when no row exists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email address. It returns nil when no row exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// List retrieves all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// UpdateCalendarSettings stores the sync preference, target calendar and,
// when non-empty, new credentials.
func (r *UserRepository) UpdateCalendarSettings(ctx context.Context, u *models.User) error {
	u.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE users SET
			calendar_sync_enabled = ?, calendar_id = ?, access_token = ?, refresh_token = ?,
			token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`,
		u.CalendarSyncEnabled, u.CalendarID, u.AccessToken, u.RefreshToken,
		dbTimePtr(u.TokenExpiresAt), u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating calendar settings: %w", err)
	}
	return affected(result)
}

// UpdateTokens persists a refreshed access token, its expiry and the refresh token.
func (r *UserRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE users SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`, accessToken, refreshToken, dbTime(expiresAt), r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	return affected(result)
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.AccessToken, &u.RefreshToken, &u.TokenExpiresAt,
		&u.CalendarID, &u.CalendarSyncEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}
