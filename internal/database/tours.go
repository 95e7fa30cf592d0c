package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gout/internal/models"
)

// CreateTourWithCounter inserts the tour and its capacity counter in
// one transaction. The counter row exists for the whole life of the
// tour and is only ever mutated through AdjustCapacityWithLock.
func (db *DB) CreateTourWithCounter(ctx context.Context, tour *models.Tour) error {
	if tour.CapacityLimit < 0 {
		return fmt.Errorf("%w: capacity_limit must be >= 0", ErrValidation)
	}
	if tour.PriceCents < 0 {
		return fmt.Errorf("%w: price_cents must be >= 0", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO tours (title, company_id, capacity_limit, price_cents, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		tour.Title, tour.CompanyID, tour.CapacityLimit, tour.PriceCents, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tour: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tour_counters (tour_id, reserved, updated_at) VALUES (?, 0, ?)`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tour counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tour: %w", err)
	}

	tour.ID = id
	tour.CreatedAt = now
	tour.UpdatedAt = now
	return nil
}

func (db *DB) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	var tour models.Tour
	query := `SELECT id, title, company_id, capacity_limit, price_cents, created_at, updated_at
              FROM tours WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&tour.ID, &tour.Title, &tour.CompanyID, &tour.CapacityLimit, &tour.PriceCents,
		&tour.CreatedAt, &tour.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tour %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &tour, nil
}

// ListToursWithAvailability returns all tours with their live counters.
func (db *DB) ListToursWithAvailability(ctx context.Context) ([]*models.TourAvailability, error) {
	query := `SELECT t.id, t.title, t.company_id, t.capacity_limit, t.price_cents,
                     t.created_at, t.updated_at, c.reserved
              FROM tours t JOIN tour_counters c ON c.tour_id = t.id
              ORDER BY t.id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tours: %w", err)
	}
	defer rows.Close()

	var out []*models.TourAvailability
	for rows.Next() {
		tour := &models.Tour{}
		var reserved int64
		err := rows.Scan(
			&tour.ID, &tour.Title, &tour.CompanyID, &tour.CapacityLimit, &tour.PriceCents,
			&tour.CreatedAt, &tour.UpdatedAt, &reserved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tour: %w", err)
		}
		out = append(out, &models.TourAvailability{
			Tour:      tour,
			Reserved:  reserved,
			Available: tour.CapacityLimit - reserved,
		})
	}
	return out, rows.Err()
}
