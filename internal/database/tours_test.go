package database

import (
	"context"
	"testing"

	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetTour(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 5, 99000)

	got, err := db.GetTour(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Tour", got.Title)
	assert.Equal(t, int64(100), got.CompanyID)
	assert.Equal(t, int64(5), got.CapacityLimit)
	assert.Equal(t, int64(99000), got.PriceCents)

	reserved, err := db.GetReservedCount(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reserved)

	_, err = db.GetTour(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTourValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	err := db.CreateTourWithCounter(ctx, &models.Tour{Title: "Bad", CompanyID: 1, CapacityLimit: -1})
	assert.ErrorIs(t, err, ErrValidation)

	err = db.CreateTourWithCounter(ctx, &models.Tour{Title: "Bad", CompanyID: 1, CapacityLimit: 1, PriceCents: -5})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListToursWithAvailability(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 4, 100000)
	other := &models.Tour{Title: "Other Tour", CompanyID: 200, CapacityLimit: 2, PriceCents: 50000}
	require.NoError(t, db.CreateTourWithCounter(ctx, other))

	booking := &models.Booking{UserID: 1, TourID: tour.ID, IdempotentKey: uuid.NewString()}
	_, err := db.CreateBookingWithCapacity(ctx, booking)
	require.NoError(t, err)

	list, err := db.ListToursWithAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := make(map[int64]*models.TourAvailability, len(list))
	for _, ta := range list {
		byID[ta.Tour.ID] = ta
	}

	assert.Equal(t, int64(1), byID[tour.ID].Reserved)
	assert.Equal(t, int64(3), byID[tour.ID].Available)
	assert.Equal(t, int64(0), byID[other.ID].Reserved)
	assert.Equal(t, int64(2), byID[other.ID].Available)
}
