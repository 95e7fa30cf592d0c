package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gout/internal/models"
)

// QrContent builds the payment reference content for a booking. The
// value is a pure function of the booking id; an external renderer
// turns it into the scannable image.
func QrContent(bookingID int64) string {
	return fmt.Sprintf("/api/v1/payments/%d", bookingID)
}

// EnsureQrForBooking returns the existing reference for the booking or
// creates it in the activated state. bookingID is unique in the table,
// so the operation needs no separate idempotency key.
func (db *DB) EnsureQrForBooking(ctx context.Context, bookingID int64) (*models.QrReference, error) {
	if ref, err := db.GetQrByBooking(ctx, bookingID); err == nil {
		return ref, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO qr_references (booking_id, content, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(booking_id) DO NOTHING`,
		bookingID, QrContent(bookingID), models.QrStatusActivated, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert qr reference: %w", err)
	}
	return db.GetQrByBooking(ctx, bookingID)
}

func (db *DB) GetQrByBooking(ctx context.Context, bookingID int64) (*models.QrReference, error) {
	var ref models.QrReference
	query := `SELECT id, booking_id, content, status, created_at, updated_at
              FROM qr_references WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&ref.ID, &ref.BookingID, &ref.Content, &ref.Status, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("qr reference for booking %d: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qr reference: %w", err)
	}
	return &ref, nil
}

func (db *DB) SetQrStatus(ctx context.Context, bookingID int64, status string) error {
	if status != models.QrStatusActivated && status != models.QrStatusExpired {
		return fmt.Errorf("%w: unknown qr status %q", ErrValidation, status)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE qr_references SET status = ?, updated_at = ? WHERE booking_id = ?`,
		status, time.Now(), bookingID,
	)
	if err != nil {
		return fmt.Errorf("failed to set qr status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("qr reference for booking %d: %w", bookingID, ErrNotFound)
	}
	return nil
}

func setQrStatusTx(ctx context.Context, tx *sql.Tx, bookingID int64, status string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE qr_references SET status = ?, updated_at = ? WHERE booking_id = ?`,
		status, time.Now(), bookingID,
	)
	if err != nil {
		return fmt.Errorf("failed to set qr status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("qr reference for booking %d: %w", bookingID, ErrNotFound)
	}
	return nil
}
