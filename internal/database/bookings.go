package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gout/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return scanBooking(db.QueryRowContext(ctx,
		`SELECT id, user_id, tour_id, status, idempotent_key, created_at, updated_at
         FROM bookings WHERE id = ?`, id))
}

func (db *DB) GetBookingByKey(ctx context.Context, idempotentKey string) (*models.Booking, error) {
	return scanBooking(db.QueryRowContext(ctx,
		`SELECT id, user_id, tour_id, status, idempotent_key, created_at, updated_at
         FROM bookings WHERE idempotent_key = ?`, idempotentKey))
}

func scanBooking(row *sql.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.TourID, &b.Status, &b.IdempotentKey, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	return &b, nil
}

func getBookingTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Booking, error) {
	var b models.Booking
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, tour_id, status, idempotent_key, created_at, updated_at
         FROM bookings WHERE id = ?`, id,
	).Scan(&b.ID, &b.UserID, &b.TourID, &b.Status, &b.IdempotentKey, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking in tx: %w", err)
	}
	return &b, nil
}

// CreateBookingWithCapacity inserts the pending booking and reserves
// its seat in one transaction under the per-tour lock. If the seat
// cannot be reserved the insert never commits, so a booking without
// reserved capacity is not observable.
//
// Replay semantics: an active booking for (user, tour) with the same
// key is returned as-is; a different key on an active booking is a
// duplicate-intent conflict.
func (db *DB) CreateBookingWithCapacity(ctx context.Context, booking *models.Booking) (bool, error) {
	unlock := db.locks.Lock(tourKey(booking.TourID))
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing models.Booking
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, tour_id, status, idempotent_key, created_at, updated_at
         FROM bookings WHERE user_id = ? AND tour_id = ? AND status != ?
         ORDER BY id DESC LIMIT 1`,
		booking.UserID, booking.TourID, models.BookingStatusCancelled,
	).Scan(&existing.ID, &existing.UserID, &existing.TourID, &existing.Status,
		&existing.IdempotentKey, &existing.CreatedAt, &existing.UpdatedAt)
	switch {
	case err == nil:
		if existing.IdempotentKey == booking.IdempotentKey {
			*booking = existing
			return true, nil
		}
		return false, fmt.Errorf("active booking %d exists for user %d tour %d: %w",
			existing.ID, booking.UserID, booking.TourID, ErrConflict)
	case errors.Is(err, sql.ErrNoRows):
		// no active booking, proceed
	default:
		return false, fmt.Errorf("failed to check active booking: %w", err)
	}

	if _, err := adjustCapacityTx(ctx, tx, booking.TourID, +1); err != nil {
		return false, err
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, tour_id, status, idempotent_key, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		booking.UserID, booking.TourID, models.BookingStatusPending,
		booking.IdempotentKey, now, now,
	)
	if err != nil {
		// The key column is unique across all bookings; hitting it here
		// means the key already belongs to a booking for another tour.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return false, fmt.Errorf("idempotency key %s already used for another booking: %w",
				booking.IdempotentKey, ErrConflict)
		}
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.Status = models.BookingStatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return false, nil
}

// SettleBookingPayment charges the user for the booking and completes
// it: balance check, booking_charge ledger row, debit and credit,
// status flip to completed with the payment key stored, qr expiry, all
// in one transaction.
//
// A completed booking carrying the same payment key is a replay and
// returns the stored transaction untouched.
func (db *DB) SettleBookingPayment(ctx context.Context, bookingID int64, payKey string) (*models.Booking, *models.Transaction, bool, error) {
	booking, err := db.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, false, err
	}

	if booking.Status == models.BookingStatusCompleted && booking.IdempotentKey == payKey {
		txn, err := db.GetTransactionByKey(ctx, payKey)
		if err != nil {
			return nil, nil, false, fmt.Errorf("replayed payment %s: %w", payKey, err)
		}
		return booking, txn, true, nil
	}
	if booking.Status != models.BookingStatusPending {
		return nil, nil, false, fmt.Errorf("booking %d is %s: %w", bookingID, booking.Status, ErrInvalidState)
	}

	tour, err := db.GetTour(ctx, booking.TourID)
	if err != nil {
		return nil, nil, false, err
	}

	payer, err := db.EnsureWallet(ctx, booking.UserID, models.OwnerUser)
	if err != nil {
		return nil, nil, false, err
	}
	payee, err := db.EnsureWallet(ctx, tour.CompanyID, models.OwnerCompany)
	if err != nil {
		return nil, nil, false, err
	}

	unlock := db.locks.LockAll(walletKey(payer.ID), walletKey(payee.ID))
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Status may have moved while waiting for the wallet locks.
	current, err := getBookingTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, false, err
	}
	if current.Status == models.BookingStatusCompleted && current.IdempotentKey == payKey {
		txn, err := getTransactionByKeyTx(ctx, tx, payKey)
		if err != nil {
			return nil, nil, false, fmt.Errorf("replayed payment %s: %w", payKey, err)
		}
		return current, txn, true, nil
	}
	if current.Status != models.BookingStatusPending {
		return nil, nil, false, fmt.Errorf("booking %d is %s: %w", bookingID, current.Status, ErrInvalidState)
	}

	txn := &models.Transaction{
		FromWalletID:  payer.ID,
		ToWalletID:    payee.ID,
		BookingID:     bookingID,
		AmountCents:   tour.PriceCents,
		Type:          models.TransactionCharge,
		IdempotentKey: payKey,
	}
	if err := transferTx(ctx, tx, txn); err != nil {
		return nil, nil, false, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, idempotent_key = ?, updated_at = ? WHERE id = ?`,
		models.BookingStatusCompleted, payKey, now, bookingID,
	)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to complete booking: %w", err)
	}

	if err := setQrStatusTx(ctx, tx, bookingID, models.QrStatusExpired); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("failed to commit settlement: %w", err)
	}

	current.Status = models.BookingStatusCompleted
	current.IdempotentKey = payKey
	current.UpdatedAt = now
	return current, txn, false, nil
}

// CancelBookingWithRelease cancels the booking and releases its seat.
// A completed booking additionally gets a full refund from the company
// wallet back to the user, committed together with the status flip and
// the capacity release.
func (db *DB) CancelBookingWithRelease(ctx context.Context, bookingID int64, cancelKey string) (*models.Booking, *models.Transaction, bool, error) {
	return db.cancelBookingWithRelease(ctx, bookingID, cancelKey, false)
}

// ExpirePendingBooking cancels the booking only while it is still
// pending. A payment that lands between listing and cancelling wins:
// the completed booking is left alone and ErrInvalidState is returned.
func (db *DB) ExpirePendingBooking(ctx context.Context, bookingID int64, cancelKey string) (*models.Booking, error) {
	booking, _, _, err := db.cancelBookingWithRelease(ctx, bookingID, cancelKey, true)
	return booking, err
}

func (db *DB) cancelBookingWithRelease(ctx context.Context, bookingID int64, cancelKey string, pendingOnly bool) (*models.Booking, *models.Transaction, bool, error) {
	booking, err := db.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, false, err
	}

	if pendingOnly && booking.Status != models.BookingStatusPending {
		return nil, nil, false, fmt.Errorf("booking %d is %s: %w", bookingID, booking.Status, ErrInvalidState)
	}
	if booking.Status == models.BookingStatusCancelled {
		if booking.IdempotentKey == cancelKey {
			return booking, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("booking %d already cancelled: %w", bookingID, ErrInvalidState)
	}

	tour, err := db.GetTour(ctx, booking.TourID)
	if err != nil {
		return nil, nil, false, err
	}

	keys := []string{tourKey(booking.TourID)}
	var payer, payee *models.Wallet
	if booking.Status == models.BookingStatusCompleted {
		payer, err = db.EnsureWallet(ctx, tour.CompanyID, models.OwnerCompany)
		if err != nil {
			return nil, nil, false, err
		}
		payee, err = db.EnsureWallet(ctx, booking.UserID, models.OwnerUser)
		if err != nil {
			return nil, nil, false, err
		}
		keys = append(keys, walletKey(payer.ID), walletKey(payee.ID))
	}

	unlock := db.locks.LockAll(keys...)
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := getBookingTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, false, err
	}
	if pendingOnly && current.Status != models.BookingStatusPending {
		return nil, nil, false, fmt.Errorf("booking %d is %s: %w", bookingID, current.Status, ErrInvalidState)
	}
	if current.Status == models.BookingStatusCancelled {
		if current.IdempotentKey == cancelKey {
			return current, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("booking %d already cancelled: %w", bookingID, ErrInvalidState)
	}

	if _, err := adjustCapacityTx(ctx, tx, booking.TourID, -1); err != nil {
		return nil, nil, false, err
	}

	var refund *models.Transaction
	if current.Status == models.BookingStatusCompleted {
		if payer == nil || payee == nil {
			// Completed after the lock wait; retry surfaces as conflict.
			return nil, nil, false, fmt.Errorf("booking %d settled concurrently: %w", bookingID, ErrConflict)
		}
		refund = &models.Transaction{
			FromWalletID:  payer.ID,
			ToWalletID:    payee.ID,
			BookingID:     bookingID,
			AmountCents:   tour.PriceCents,
			Type:          models.TransactionRefund,
			IdempotentKey: cancelKey,
		}
		if err := transferTx(ctx, tx, refund); err != nil {
			return nil, nil, false, err
		}
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, idempotent_key = ?, updated_at = ? WHERE id = ?`,
		models.BookingStatusCancelled, cancelKey, now, bookingID,
	)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := setQrStatusTx(ctx, tx, bookingID, models.QrStatusExpired); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	current.Status = models.BookingStatusCancelled
	current.IdempotentKey = cancelKey
	current.UpdatedAt = now
	return current, refund, false, nil
}

// ListExpiredPendingBookings returns ids of pending bookings created
// before the cutoff, for the expiry sweep.
func (db *DB) ListExpiredPendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = ? AND created_at < ? ORDER BY id ASC LIMIT ?`,
		models.BookingStatusPending, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListBookings returns bookings for a period, oldest first.
func (db *DB) ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, tour_id, status, idempotent_key, created_at, updated_at
         FROM bookings WHERE created_at >= ? AND created_at <= ?
         ORDER BY created_at ASC, id ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(&b.ID, &b.UserID, &b.TourID, &b.Status, &b.IdempotentKey, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
