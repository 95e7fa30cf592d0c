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

func TestWalletTopUp(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	txn, replayed, err := env.wallets.TopUp(ctx, 1, uuid.NewString(), 75000)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, models.TransactionTopUp, txn.Type)

	wallet, err := env.wallets.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), wallet.BalanceCents)
}

func TestWalletTopUpIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	key := uuid.NewString()

	first, replayed, err := env.wallets.TopUp(ctx, 1, key, 50000)
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := env.wallets.TopUp(ctx, 1, key, 50000)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	wallet, err := env.wallets.GetWallet(ctx, 1, models.OwnerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), wallet.BalanceCents)
}

func TestWalletTopUpValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, _, err := env.wallets.TopUp(ctx, 1, "nope", 100)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, _, err = env.wallets.TopUp(ctx, 0, uuid.NewString(), 100)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, _, err = env.wallets.TopUp(ctx, 1, uuid.NewString(), 0)
	assert.ErrorIs(t, err, database.ErrValidation)
}

func TestGetWalletProvisionsOnFirstRead(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	wallet, err := env.wallets.GetWallet(ctx, 9, models.OwnerCompany)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.BalanceCents)
	assert.Equal(t, models.OwnerCompany, wallet.OwnerKind)

	_, err = env.wallets.GetWallet(ctx, 9, "martian")
	assert.ErrorIs(t, err, database.ErrValidation)
}
