package idempotency

import (
	"context"
	"testing"
	"time"

	"gout/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	cache := NewRedisCache(client, "gout", time.Hour)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		record := &models.ReplayRecord{
			Key:           "11111111-2222-3333-4444-555555555555",
			Operation:     "pay",
			BookingID:     7,
			TransactionID: 3,
			Status:        "completed",
			StoredAt:      time.Now(),
		}

		err := cache.Set(ctx, record)
		require.NoError(t, err)

		got, err := cache.Get(ctx, record.Key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.Operation, got.Operation)
		assert.Equal(t, record.BookingID, got.BookingID)
		assert.Equal(t, record.TransactionID, got.TransactionID)

		// Stored under the service prefix.
		assert.True(t, s.Exists("gout:replay:"+record.Key))
	})

	t.Run("GetMiss", func(t *testing.T) {
		got, err := cache.Get(ctx, "never-stored")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		record := &models.ReplayRecord{Key: "short-lived", Operation: "book"}
		require.NoError(t, cache.Set(ctx, record))

		s.FastForward(2 * time.Hour)

		got, err := cache.Get(ctx, "short-lived")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		record := &models.ReplayRecord{Key: "to-delete", Operation: "book"}
		require.NoError(t, cache.Set(ctx, record))

		require.NoError(t, cache.Delete(ctx, "to-delete"))

		got, err := cache.Get(ctx, "to-delete")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
