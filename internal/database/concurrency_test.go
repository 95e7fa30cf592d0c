package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBookingSingleSeat(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 1, 100000)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			booking := &models.Booking{
				UserID:        int64(id + 1),
				TourID:        tour.ID,
				IdempotentKey: uuid.NewString(),
			}
			_, bErr := db.CreateBookingWithCapacity(ctx, booking)
			results <- bErr
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	rejectedCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrInsufficientCapacity):
			rejectedCount++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	// Only 1 booking fits a tour with capacity 1.
	assert.Equal(t, 1, successCount, "only one booking should succeed")
	assert.Equal(t, numGoroutines-1, rejectedCount, "the rest should be rejected on capacity")

	reserved, err := db.GetReservedCount(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reserved)
}

func TestConcurrentCapacityAdjustConservation(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "capacity.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 5, 100000)

	const numGoroutines = 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, aErr := db.AdjustCapacityWithLock(ctx, tour.ID, +1)
			results <- aErr
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientCapacity)
		}
	}

	// Exactly limit increments land, the rest reject. The counter never
	// overshoots and no increment is lost.
	assert.Equal(t, 5, successCount)

	reserved, err := db.GetReservedCount(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reserved)
}

func TestConcurrentMixedAdjustsStayInBounds(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "mixed.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 5, 100000)

	const increments = 15
	const decrements = 10
	var wg sync.WaitGroup
	wg.Add(increments + decrements)

	applied := make(chan int64, increments+decrements)

	for i := 0; i < increments; i++ {
		go func() {
			defer wg.Done()
			if _, err := db.AdjustCapacityWithLock(ctx, tour.ID, +1); err == nil {
				applied <- +1
			}
		}()
	}
	for i := 0; i < decrements; i++ {
		go func() {
			defer wg.Done()
			if _, err := db.AdjustCapacityWithLock(ctx, tour.ID, -1); err == nil {
				applied <- -1
			}
		}()
	}

	wg.Wait()
	close(applied)

	var sum int64
	for delta := range applied {
		sum += delta
	}

	reserved, err := db.GetReservedCount(ctx, tour.ID)
	require.NoError(t, err)

	// The counter equals the sum of applied deltas and stayed in bounds.
	assert.Equal(t, sum, reserved)
	assert.GreaterOrEqual(t, reserved, int64(0))
	assert.LessOrEqual(t, reserved, int64(5))
}

func TestConcurrentTopUpSameKey(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "topup.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	key := uuid.NewString()

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	replays := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, replayed, tErr := db.TopUpWallet(ctx, 1, key, 50000)
			if tErr != nil {
				t.Errorf("top up failed: %v", tErr)
				return
			}
			replays <- replayed
		}()
	}

	wg.Wait()
	close(replays)

	freshCount := 0
	for replayed := range replays {
		if !replayed {
			freshCount++
		}
	}

	// A single credit regardless of how many callers race on the key.
	assert.Equal(t, 1, freshCount)

	wallet, err := db.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), wallet.BalanceCents)
}
