package service

import (
	"context"
	"errors"
	"fmt"

	"gout/internal/database"
	"gout/internal/domain"
	"gout/internal/events"
	"gout/internal/metrics"
	"gout/internal/models"

	"github.com/rs/zerolog"
)

// PaymentService settles pending bookings: charge the user wallet,
// credit the company, complete the booking and expire its reference.
type PaymentService struct {
	store  domain.Store
	cache  domain.ReplayCache
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewPaymentService(store domain.Store, cache domain.ReplayCache, bus domain.EventPublisher, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{store: store, cache: cache, bus: bus, logger: logger}
}

// PayBooking charges the tour price for a pending booking. An
// insufficient balance leaves the booking pending and the wallets
// untouched.
func (s *PaymentService) PayBooking(ctx context.Context, bookingID int64, key string) (*models.BookingResult, error) {
	if err := validateIdempotencyKey(key); err != nil {
		return nil, err
	}

	if record, err := checkReplay(ctx, s.cache, s.logger, key, opPay); err != nil {
		return nil, err
	} else if record != nil {
		if record.BookingID != bookingID {
			return nil, fmt.Errorf("idempotency key %s belongs to booking %d: %w", key, record.BookingID, database.ErrConflict)
		}
		booking, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return &models.BookingResult{Booking: booking, Replayed: true}, nil
	}

	booking, txn, replayed, err := s.store.SettleBookingPayment(ctx, bookingID, key)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientBalance) {
			metrics.IncBalanceRejection()
			s.logger.Info().Int64("booking_id", bookingID).Msg("payment rejected, insufficient balance")
		}
		return nil, err
	}

	storeReplay(ctx, s.cache, s.logger, &models.ReplayRecord{
		Key: key, Operation: opPay, BookingID: bookingID, TransactionID: txn.ID, Status: booking.Status,
	})

	if !replayed {
		metrics.IncBooking(models.BookingStatusCompleted)
		metrics.IncTransaction(models.TransactionCharge)
		s.publishSettlement(booking, txn)
		s.logger.Info().
			Int64("booking_id", bookingID).
			Int64("transaction_id", txn.ID).
			Int64("amount_cents", txn.AmountCents).
			Msg("booking paid")
	} else {
		metrics.IncReplay(opPay)
	}

	return &models.BookingResult{Booking: booking, Replayed: replayed}, nil
}

// GetQrReference returns the payment reference for a booking. Its
// content is consumed by the external image renderer.
func (s *PaymentService) GetQrReference(ctx context.Context, bookingID int64) (*models.QrReference, error) {
	return s.store.GetQrByBooking(ctx, bookingID)
}

func (s *PaymentService) publishSettlement(booking *models.Booking, txn *models.Transaction) {
	if s.bus == nil {
		return
	}

	if err := s.bus.PublishJSON(events.EventBookingCompleted, events.BookingEventPayload{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		TourID:    booking.TourID,
		Status:    booking.Status,
	}); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish event error")
	}

	if err := s.bus.PublishJSON(events.EventPaymentSettled, events.LedgerEventPayload{
		TransactionID: txn.ID,
		Type:          txn.Type,
		FromWalletID:  txn.FromWalletID,
		ToWalletID:    txn.ToWalletID,
		BookingID:     txn.BookingID,
		AmountCents:   txn.AmountCents,
	}); err != nil {
		s.logger.Error().Err(err).Int64("transaction_id", txn.ID).Msg("publish event error")
	}
}
