package idempotency

import (
	"context"
	"testing"
	"time"

	"gout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	ctx := context.Background()

	record := &models.ReplayRecord{
		Key:       "11111111-2222-3333-4444-555555555555",
		Operation: "book",
		BookingID: 42,
		Status:    "pending",
		StoredAt:  time.Now(),
	}
	require.NoError(t, cache.Set(ctx, record))

	got, err := cache.Get(ctx, record.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "book", got.Operation)
	assert.Equal(t, int64(42), got.BookingID)
}

func TestMemoryCacheMissReturnsNil(t *testing.T) {
	cache := NewMemoryCache(time.Hour)

	got, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &models.ReplayRecord{Key: "k", Operation: "book"}))

	time.Sleep(30 * time.Millisecond)

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &models.ReplayRecord{Key: "k", Operation: "book"}))
	require.NoError(t, cache.Delete(ctx, "k"))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
