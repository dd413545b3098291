// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/foodguardian/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// KV is a small durable key-value store.
// The client keeps its session token here so it survives restarts.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Store defines the persistence operations of the development backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the HTTP handlers.
type Store interface {
	// CreateUser persists a new account.
	// Returns ErrEmailTaken if the email is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves an account by its email.
	// Returns ErrNotFound if there is none.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves an account by its ID.
	// Returns ErrNotFound if there is none.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePreferences applies a partial preference write and returns the
	// resulting account. Nil fields of the update are left unchanged.
	UpdatePreferences(ctx context.Context, userID string, update PreferencePatch) (*models.User, error)

	// UpsertStore creates or replaces a store profile.
	// It reports whether the store was newly created.
	UpsertStore(ctx context.Context, store *models.StoreProfile) (bool, error)

	// ListStores returns all stores ordered by name.
	ListStores(ctx context.Context) ([]models.StoreProfile, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrEmailTaken is returned by CreateUser for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// PreferencePatch is the backend-side form of a preference write.
// Unlike models.PreferenceUpdate the radius is fractional, as the backend
// accepts any positive number up to its own limit.
type PreferencePatch struct {
	Notify      *bool
	Location    *models.Coordinate
	RadiusKm    *float64
	ItemFilters []string
	// HasFilters distinguishes "no filters sent" from "empty filter list".
	HasFilters bool
}
