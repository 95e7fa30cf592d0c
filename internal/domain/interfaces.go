package domain

import (
	"context"
	"time"

	"gout/internal/models"
)

// Store is the persistence surface the services operate on. Multi-step
// mutations (booking with seat, settlement, cancellation with refund)
// are single store calls so their atomicity lives with the data.
type Store interface {
	CreateTourWithCounter(ctx context.Context, tour *models.Tour) error
	GetTour(ctx context.Context, id int64) (*models.Tour, error)
	ListToursWithAvailability(ctx context.Context) ([]*models.TourAvailability, error)
	AdjustCapacityWithLock(ctx context.Context, tourID, delta int64) (int64, error)
	GetReservedCount(ctx context.Context, tourID int64) (int64, error)

	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithCapacity(ctx context.Context, booking *models.Booking) (bool, error)
	SettleBookingPayment(ctx context.Context, bookingID int64, payKey string) (*models.Booking, *models.Transaction, bool, error)
	CancelBookingWithRelease(ctx context.Context, bookingID int64, cancelKey string) (*models.Booking, *models.Transaction, bool, error)
	ExpirePendingBooking(ctx context.Context, bookingID int64, cancelKey string) (*models.Booking, error)
	ListExpiredPendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error)

	EnsureWallet(ctx context.Context, ownerID int64, ownerKind string) (*models.Wallet, error)
	GetWallet(ctx context.Context, ownerID int64, ownerKind string) (*models.Wallet, error)
	TopUpWallet(ctx context.Context, userID int64, idempotentKey string, amountCents int64) (*models.Transaction, bool, error)
	GetTransactionByKey(ctx context.Context, idempotentKey string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, from, to time.Time) ([]*models.Transaction, error)

	EnsureQrForBooking(ctx context.Context, bookingID int64) (*models.QrReference, error)
	GetQrByBooking(ctx context.Context, bookingID int64) (*models.QrReference, error)
	SetQrStatus(ctx context.Context, bookingID int64, status string) error
}

// ReplayCache answers "has this key been seen" before any resource
// lock is taken. A nil result with nil error means unknown key.
type ReplayCache interface {
	Get(ctx context.Context, key string) (*models.ReplayRecord, error)
	Set(ctx context.Context, record *models.ReplayRecord) error
	Delete(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Scheduler fires fn once at the given time. Background jobs and
// request handlers both go through the same service methods, so
// scheduled work holds no special locking privileges.
type Scheduler interface {
	Schedule(at time.Time, fn func())
}
