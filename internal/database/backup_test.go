package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gout/internal/config"
	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	tour := createTestTour(t, db, 3, 100000)
	booking := &models.Booking{UserID: 1, TourID: tour.ID, IdempotentKey: uuid.NewString()}
	_, err = db.CreateBookingWithCapacity(ctx, booking)
	require.NoError(t, err)

	backupDir := filepath.Join(dir, "backups")
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:       true,
		StoragePath:   backupDir,
		RetentionDays: 7,
	}, &logger)

	err = svc.PerformBackup()
	require.NoError(t, err)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// The backup file opens as a regular sqlite database with the data.
	copyDB, err := NewDB(filepath.Join(backupDir, entries[0].Name()), &logger)
	require.NoError(t, err)
	defer copyDB.Close()

	restored, err := copyDB.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.IdempotentKey, restored.IdempotentKey)
}
