package database

import (
	"context"
	"testing"

	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQrContentIsDeterministic(t *testing.T) {
	assert.Equal(t, "/api/v1/payments/42", QrContent(42))
	assert.Equal(t, QrContent(42), QrContent(42))
	assert.Equal(t, "/api/v1/payments/1", QrContent(1))
}

func TestEnsureQrForBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 3, 100000)
	booking := &models.Booking{UserID: 1, TourID: tour.ID, IdempotentKey: uuid.NewString()}
	_, err := db.CreateBookingWithCapacity(ctx, booking)
	require.NoError(t, err)

	ref, err := db.EnsureQrForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, QrContent(booking.ID), ref.Content)
	assert.Equal(t, models.QrStatusActivated, ref.Status)

	// A second call returns the same row.
	again, err := db.EnsureQrForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, again.ID)
}

func TestSetQrStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 3, 100000)
	booking := &models.Booking{UserID: 1, TourID: tour.ID, IdempotentKey: uuid.NewString()}
	_, err := db.CreateBookingWithCapacity(ctx, booking)
	require.NoError(t, err)
	_, err = db.EnsureQrForBooking(ctx, booking.ID)
	require.NoError(t, err)

	err = db.SetQrStatus(ctx, booking.ID, models.QrStatusExpired)
	require.NoError(t, err)

	ref, err := db.GetQrByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QrStatusExpired, ref.Status)

	// Reactivation is allowed.
	err = db.SetQrStatus(ctx, booking.ID, models.QrStatusActivated)
	require.NoError(t, err)

	err = db.SetQrStatus(ctx, booking.ID, "shredded")
	assert.ErrorIs(t, err, ErrValidation)

	err = db.SetQrStatus(ctx, 9999, models.QrStatusExpired)
	assert.ErrorIs(t, err, ErrNotFound)
}
