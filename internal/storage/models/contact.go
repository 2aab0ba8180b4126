package models

import "time"

// ExternalContact is a person outside the organization who can be invited to
// meetings. Selecting a contact for a meeting fills the meeting's external
// contact fields.
type ExternalContact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Position  *string   `json:"position,omitempty"`
	Company   *string   `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
