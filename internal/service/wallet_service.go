package service

import (
	"context"
	"fmt"

	"gout/internal/database"
	"gout/internal/domain"
	"gout/internal/events"
	"gout/internal/metrics"
	"gout/internal/models"

	"github.com/rs/zerolog"
)

// WalletService handles balance reads and top-ups. Charges and
// refunds go through the booking and payment services because they
// are settlement steps, not standalone wallet operations.
type WalletService struct {
	store  domain.Store
	cache  domain.ReplayCache
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewWalletService(store domain.Store, cache domain.ReplayCache, bus domain.EventPublisher, logger *zerolog.Logger) *WalletService {
	return &WalletService{store: store, cache: cache, bus: bus, logger: logger}
}

// TopUp credits the user wallet. A replayed key returns the original
// transaction with no second credit.
func (s *WalletService) TopUp(ctx context.Context, userID int64, key string, amountCents int64) (*models.Transaction, bool, error) {
	if err := validateIdempotencyKey(key); err != nil {
		return nil, false, err
	}
	if userID <= 0 {
		return nil, false, fmt.Errorf("%w: user id must be positive", database.ErrValidation)
	}
	if amountCents <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive", database.ErrValidation)
	}

	if record, err := checkReplay(ctx, s.cache, s.logger, key, opTopUp); err != nil {
		return nil, false, err
	} else if record != nil {
		txn, err := s.store.GetTransactionByKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return txn, true, nil
	}

	txn, replayed, err := s.store.TopUpWallet(ctx, userID, key, amountCents)
	if err != nil {
		return nil, false, err
	}

	storeReplay(ctx, s.cache, s.logger, &models.ReplayRecord{
		Key: key, Operation: opTopUp, TransactionID: txn.ID,
	})

	if !replayed {
		metrics.IncTransaction(models.TransactionTopUp)
		if s.bus != nil {
			if err := s.bus.PublishJSON(events.EventWalletTopUp, events.LedgerEventPayload{
				TransactionID: txn.ID,
				Type:          txn.Type,
				ToWalletID:    txn.ToWalletID,
				AmountCents:   txn.AmountCents,
			}); err != nil {
				s.logger.Error().Err(err).Int64("transaction_id", txn.ID).Msg("publish event error")
			}
		}
		s.logger.Info().Int64("user_id", userID).Int64("amount_cents", amountCents).Msg("wallet topped up")
	} else {
		metrics.IncReplay(opTopUp)
	}

	return txn, replayed, nil
}

// GetWallet returns the owner's wallet, creating it with zero balance
// on first read.
func (s *WalletService) GetWallet(ctx context.Context, ownerID int64, ownerKind string) (*models.Wallet, error) {
	return s.store.EnsureWallet(ctx, ownerID, ownerKind)
}
