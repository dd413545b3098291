package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/foodguardian/internal/models"
)

// UpsertStore inserts the store or overwrites the existing record with the same ID.
func (s *SQLiteStore) UpsertStore(ctx context.Context, store *models.StoreProfile) (bool, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var createdAt int64
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM stores WHERE id = ?", store.StoreID).Scan(&createdAt)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("failed to look up store: %w", err)
	}

	if created {
		createdAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stores (id, name, email, phone, lat, lng, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, store.StoreID, store.Name, store.Email, store.Phone,
			store.Location.Lat(), store.Location.Lng(), createdAt, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE stores SET name = ?, email = ?, phone = ?, lat = ?, lng = ?, updated_at = ?
			WHERE id = ?
		`, store.Name, store.Email, store.Phone,
			store.Location.Lat(), store.Location.Lng(), now, store.StoreID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to write store: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	store.CreatedAt = createdAt
	store.UpdatedAt = now
	return created, nil
}

// ListStores returns every store ordered by name.
func (s *SQLiteStore) ListStores(ctx context.Context) ([]models.StoreProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, lat, lng, created_at, updated_at FROM stores ORDER BY name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []models.StoreProfile
	for rows.Next() {
		var (
			p        models.StoreProfile
			lat, lng float64
		)
		if err := rows.Scan(&p.StoreID, &p.Name, &p.Email, &p.Phone, &lat, &lng, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		p.Location, err = models.NewCoordinate(lat, lng)
		if err != nil {
			return nil, fmt.Errorf("stored location of store %s: %w", p.StoreID, err)
		}
		stores = append(stores, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stores: %w", err)
	}

	return stores, nil
}
