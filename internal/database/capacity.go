package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AdjustCapacityWithLock applies delta to the tour's reserved counter
// inside the per-tour exclusive section. The result must stay within
// [0, capacity_limit]; anything outside is rejected without mutation.
// Concurrent calls on the same tour serialize, so the final counter is
// always the arithmetic sum of the applied deltas.
func (db *DB) AdjustCapacityWithLock(ctx context.Context, tourID, delta int64) (int64, error) {
	unlock := db.locks.Lock(tourKey(tourID))
	defer unlock()

	return db.adjustCapacityLocked(ctx, tourID, delta)
}

// adjustCapacityLocked runs the read-check-update cycle in one short
// transaction. Callers must hold the tour lock.
func (db *DB) adjustCapacityLocked(ctx context.Context, tourID, delta int64) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	newReserved, err := adjustCapacityTx(ctx, tx, tourID, delta)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit capacity adjustment: %w", err)
	}
	return newReserved, nil
}

// adjustCapacityTx mutates the counter within the caller's transaction
// so booking creation and cancellation can move the seat and the
// booking row atomically.
func adjustCapacityTx(ctx context.Context, tx *sql.Tx, tourID, delta int64) (int64, error) {
	var reserved, limit int64
	query := `SELECT c.reserved, t.capacity_limit
              FROM tour_counters c JOIN tours t ON t.id = c.tour_id
              WHERE c.tour_id = ?`
	err := tx.QueryRowContext(ctx, query, tourID).Scan(&reserved, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tour counter %d: %w", tourID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tour counter: %w", err)
	}

	newReserved := reserved + delta
	if newReserved < 0 || newReserved > limit {
		return 0, fmt.Errorf("tour %d: reserved %d%+d out of [0, %d]: %w",
			tourID, reserved, delta, limit, ErrInsufficientCapacity)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tour_counters SET reserved = ?, updated_at = ? WHERE tour_id = ?`,
		newReserved, time.Now(), tourID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update tour counter: %w", err)
	}
	return newReserved, nil
}

func (db *DB) GetReservedCount(ctx context.Context, tourID int64) (int64, error) {
	var reserved int64
	err := db.QueryRowContext(ctx,
		`SELECT reserved FROM tour_counters WHERE tour_id = ?`, tourID,
	).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tour counter %d: %w", tourID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get reserved count: %w", err)
	}
	return reserved, nil
}
