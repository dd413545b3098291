package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/foodguardian/internal/models"
	"github.com/mmynk/foodguardian/internal/storage"
)

const userColumns = `id, email, password_hash, notify, lat, lng, radius_km, item_filters, created_at, updated_at`

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	filters, err := json.Marshal(nonNil(user.ItemFilters))
	if err != nil {
		return fmt.Errorf("failed to encode item filters: %w", err)
	}
	lat, lng := nullCoordinate(user.Location)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Notify,
		lat,
		lng,
		user.RadiusKm,
		string(filters),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// UpdatePreferences applies the non-nil fields of patch to the user.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, userID string, patch storage.PreferencePatch) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if patch.Notify != nil {
		user.Notify = *patch.Notify
	}
	if patch.Location != nil {
		loc := *patch.Location
		user.Location = &loc
	}
	if patch.RadiusKm != nil {
		user.RadiusKm = *patch.RadiusKm
	}
	if patch.HasFilters {
		user.ItemFilters = nonNil(patch.ItemFilters)
	}
	user.UpdatedAt = time.Now().Unix()

	filters, err := json.Marshal(nonNil(user.ItemFilters))
	if err != nil {
		return nil, fmt.Errorf("failed to encode item filters: %w", err)
	}
	lat, lng := nullCoordinate(user.Location)

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET notify = ?, lat = ?, lng = ?, radius_km = ?, item_filters = ?, updated_at = ?
		WHERE id = ?
	`, user.Notify, lat, lng, user.RadiusKm, string(filters), user.UpdatedAt, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		lat, lng sql.NullFloat64
		filters  string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Notify,
		&lat,
		&lng,
		&user.RadiusKm,
		&filters,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		c, err := models.NewCoordinate(lat.Float64, lng.Float64)
		if err != nil {
			return nil, fmt.Errorf("stored location of user %s: %w", user.ID, err)
		}
		user.Location = &c
	}
	if err := json.Unmarshal([]byte(filters), &user.ItemFilters); err != nil {
		return nil, fmt.Errorf("failed to decode item filters: %w", err)
	}
	user.ItemFilters = nonNil(user.ItemFilters)

	return &user, nil
}

func nullCoordinate(c *models.Coordinate) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat(), Valid: true}, sql.NullFloat64{Float64: c.Lng(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
