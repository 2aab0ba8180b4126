package models

import (
	"time"
)

// tokenExpiryLeeway is subtracted from the stored expiry so a token is not
// used in the last moments of its lifetime.
const tokenExpiryLeeway = time.Minute

// User is an internal user. Only the calendar-related fields take part in sync.
type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	AccessToken         string     `json:"-"`
	RefreshToken        string     `json:"-"`
	TokenExpiresAt      *time.Time `json:"token_expires_at,omitempty"`
	CalendarID          *string    `json:"calendar_id,omitempty"`
	CalendarSyncEnabled bool       `json:"calendar_sync_enabled"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PrefersCalendarSync reports whether the user opted into remote sync and has
// connected a calendar account.
func (u *User) PrefersCalendarSync() bool {
	return u.CalendarSyncEnabled && (u.AccessToken != "" || u.RefreshToken != "")
}

// HasValidAccessToken reports whether the stored access token is usable at now.
func (u *User) HasValidAccessToken(now time.Time) bool {
	if u.AccessToken == "" || u.TokenExpiresAt == nil {
		return false
	}
	return u.TokenExpiresAt.Add(-tokenExpiryLeeway).After(now)
}

// HasCalendarConnection reports whether any calendar credential is stored.
func (u *User) HasCalendarConnection() bool {
	return u.AccessToken != "" || u.RefreshToken != ""
}
