package service

import (
	"context"
	"testing"

	"gout/internal/database"
	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayBooking(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 3)

	_, _, err := env.wallets.TopUp(ctx, 1, uuid.NewString(), 150000)
	require.NoError(t, err)

	booked, err := env.bookings.BookTour(ctx, 1, tour.ID, uuid.NewString())
	require.NoError(t, err)

	paid, err := env.payments.PayBooking(ctx, booked.Booking.ID, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, paid.Replayed)
	assert.Equal(t, models.BookingStatusCompleted, paid.Booking.Status)

	// Money moved from the user to the company.
	userWallet, err := env.wallets.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), userWallet.BalanceCents)

	companyWallet, err := env.wallets.GetWallet(ctx, tour.CompanyID, models.OwnerCompany)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), companyWallet.BalanceCents)

	// The payment reference is spent.
	qr, err := env.payments.GetQrReference(ctx, booked.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QrStatusExpired, qr.Status)
}

func TestPayBookingInsufficientBalance(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 3)

	_, _, err := env.wallets.TopUp(ctx, 1, uuid.NewString(), 50000)
	require.NoError(t, err)

	booked, err := env.bookings.BookTour(ctx, 1, tour.ID, uuid.NewString())
	require.NoError(t, err)

	payKey := uuid.NewString()
	_, err = env.payments.PayBooking(ctx, booked.Booking.ID, payKey)
	assert.ErrorIs(t, err, database.ErrInsufficientBalance)

	// Balances, booking state and the ledger are untouched.
	userWallet, err := env.wallets.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), userWallet.BalanceCents)

	booking, err := env.db.GetBooking(ctx, booked.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)

	_, err = env.db.GetTransactionByKey(ctx, payKey)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// Topping up and retrying the same key succeeds.
	_, _, err = env.wallets.TopUp(ctx, 1, uuid.NewString(), 50000)
	require.NoError(t, err)

	paid, err := env.payments.PayBooking(ctx, booked.Booking.ID, payKey)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, paid.Booking.Status)
}

func TestPayBookingReplay(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 3)

	_, _, err := env.wallets.TopUp(ctx, 1, uuid.NewString(), 300000)
	require.NoError(t, err)

	booked, err := env.bookings.BookTour(ctx, 1, tour.ID, uuid.NewString())
	require.NoError(t, err)

	payKey := uuid.NewString()
	_, err = env.payments.PayBooking(ctx, booked.Booking.ID, payKey)
	require.NoError(t, err)

	again, err := env.payments.PayBooking(ctx, booked.Booking.ID, payKey)
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	// Charged once.
	userWallet, err := env.wallets.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), userWallet.BalanceCents)
}

func TestPayBookingKeyBoundToBooking(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 3)

	_, _, err := env.wallets.TopUp(ctx, 1, uuid.NewString(), 300000)
	require.NoError(t, err)
	_, _, err = env.wallets.TopUp(ctx, 2, uuid.NewString(), 300000)
	require.NoError(t, err)

	first, err := env.bookings.BookTour(ctx, 1, tour.ID, uuid.NewString())
	require.NoError(t, err)
	second, err := env.bookings.BookTour(ctx, 2, tour.ID, uuid.NewString())
	require.NoError(t, err)

	payKey := uuid.NewString()
	_, err = env.payments.PayBooking(ctx, first.Booking.ID, payKey)
	require.NoError(t, err)

	_, err = env.payments.PayBooking(ctx, second.Booking.ID, payKey)
	assert.ErrorIs(t, err, database.ErrConflict)
}

func TestPayBookingWrongState(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 3)

	booked, err := env.bookings.BookTour(ctx, 1, tour.ID, uuid.NewString())
	require.NoError(t, err)

	_, err = env.bookings.CancelBooking(ctx, booked.Booking.ID, uuid.NewString())
	require.NoError(t, err)

	_, err = env.payments.PayBooking(ctx, booked.Booking.ID, uuid.NewString())
	assert.ErrorIs(t, err, database.ErrInvalidState)
}

func TestPayBookingValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.payments.PayBooking(ctx, 1, "bad-key")
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = env.payments.PayBooking(ctx, 9999, uuid.NewString())
	assert.ErrorIs(t, err, database.ErrNotFound)
}
