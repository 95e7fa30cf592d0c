package service

import (
	"context"
	"os"
	"testing"
	"time"

	"gout/internal/config"
	"gout/internal/database"
	"gout/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishTour(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tour, err := env.tours.PublishTour(ctx, "River Rafting", 7, 12, 80000)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), tour.PriceCents)
	assert.Equal(t, int64(12), tour.CapacityLimit)

	// A zero price falls back to the platform-wide price.
	cheap, err := env.tours.PublishTour(ctx, "City Walk", 7, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), cheap.PriceCents)
}

func TestPublishTourValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.tours.PublishTour(ctx, "", 7, 12, 80000)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = env.tours.PublishTour(ctx, "Trek", 0, 12, 80000)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = env.tours.PublishTour(ctx, "Trek", 7, -1, 80000)
	assert.ErrorIs(t, err, database.ErrValidation)
}

func TestListTours(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 4)

	list, err := env.tours.ListTours(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tour.ID, list[0].Tour.ID)
	assert.Equal(t, int64(4), list[0].Available)
}

func TestAdjustCapacity(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	tour := env.publishTour(t, 10)

	reserved, err := env.tours.AdjustCapacity(ctx, tour.ID, +4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), reserved)

	_, err = env.tours.AdjustCapacity(ctx, tour.ID, +7)
	assert.ErrorIs(t, err, database.ErrInsufficientCapacity)
}

func TestSimulateCapacityRace(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	sched := scheduler.New(&logger, scheduler.DefaultRetryPolicy())
	cfg := config.BookingConfig{TourPriceCents: 100000}
	tours := NewTourService(db, sched, cfg, &logger)

	ctx := context.Background()
	tour, err := tours.PublishTour(ctx, "Race Tour", 7, 10, 0)
	require.NoError(t, err)

	// Seed with 3 so the -3 applies even if it fires first.
	_, err = tours.AdjustCapacity(ctx, tour.ID, +3)
	require.NoError(t, err)

	tours.SimulateCapacityRace(tour.ID, time.Now().Add(10*time.Millisecond))
	sched.Stop()

	// Both deltas landed: 3 + 5 - 3.
	reserved, err := db.GetReservedCount(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reserved)
}
