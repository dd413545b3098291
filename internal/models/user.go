package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account held by the development backend.
//
// The client only ever sees the JSON projection of this record (GET /me);
// PasswordHash never leaves the backend.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's login, stored trimmed and lower-cased (unique).
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// Notify enables alert delivery for this account.
	Notify bool

	// Location is the subscriber's position, nil when not set.
	Location *Coordinate

	// RadiusKm is the notification radius in kilometers.
	RadiusKm float64

	// ItemFilters are the followed tag ids.
	ItemFilters []string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last modification.
	UpdatedAt int64
}

// NewUser creates an account with the defaults of a fresh signup:
// notifications on, no location, DefaultRadiusKm, no filters.
func NewUser(email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Notify:       true,
		RadiusKm:     DefaultRadiusKm,
		ItemFilters:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
