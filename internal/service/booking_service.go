package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gout/internal/config"
	"gout/internal/database"
	"gout/internal/domain"
	"gout/internal/events"
	"gout/internal/metrics"
	"gout/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	opBook   = "book"
	opCancel = "cancel"
	opPay    = "pay"
	opTopUp  = "top_up"
)

// BookingService owns the booking lifecycle: reserve a seat, hold it
// while payment is pending, release it on cancellation or expiry.
type BookingService struct {
	store  domain.Store
	cache  domain.ReplayCache
	bus    domain.EventPublisher
	cfg    config.BookingConfig
	logger *zerolog.Logger
}

func NewBookingService(store domain.Store, cache domain.ReplayCache, bus domain.EventPublisher, cfg config.BookingConfig, logger *zerolog.Logger) *BookingService {
	return &BookingService{store: store, cache: cache, bus: bus, cfg: cfg, logger: logger}
}

// validateIdempotencyKey requires a well-formed UUID, matching what
// clients send in the idempotent-key header.
func validateIdempotencyKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("%w: idempotency key must be a UUID", database.ErrValidation)
	}
	return nil
}

// checkReplay consults the cache before any lock is taken. A key seen
// for a different operation is a reuse conflict. Cache failures are
// not fatal; the store's unique columns still dedup.
func checkReplay(ctx context.Context, cache domain.ReplayCache, logger *zerolog.Logger, key, operation string) (*models.ReplayRecord, error) {
	record, err := cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("replay cache lookup failed")
		return nil, nil
	}
	if record == nil {
		return nil, nil
	}
	if record.Operation != operation {
		return nil, fmt.Errorf("idempotency key %s already used for %s: %w", key, record.Operation, database.ErrConflict)
	}
	metrics.IncReplay(operation)
	return record, nil
}

func storeReplay(ctx context.Context, cache domain.ReplayCache, logger *zerolog.Logger, record *models.ReplayRecord) {
	record.StoredAt = time.Now()
	if err := cache.Set(ctx, record); err != nil {
		logger.Warn().Err(err).Str("key", record.Key).Msg("replay cache store failed")
	}
}

// BookTour reserves a seat for the user. Replays with the same key
// return the stored booking; an active booking under a different key
// is a duplicate-intent conflict.
func (s *BookingService) BookTour(ctx context.Context, userID, tourID int64, key string) (*models.BookingResult, error) {
	if err := validateIdempotencyKey(key); err != nil {
		return nil, err
	}
	if userID <= 0 || tourID <= 0 {
		return nil, fmt.Errorf("%w: user and tour ids must be positive", database.ErrValidation)
	}

	if record, err := checkReplay(ctx, s.cache, s.logger, key, opBook); err != nil {
		return nil, err
	} else if record != nil {
		result, err := s.bookingResultByID(ctx, record.BookingID, true)
		if err != nil {
			return nil, err
		}
		// The stored booking must match the request; the same key on a
		// different tour or user is a reuse, not a replay.
		if result.Booking.UserID != userID || result.Booking.TourID != tourID {
			return nil, fmt.Errorf("idempotency key %s belongs to booking %d: %w", key, record.BookingID, database.ErrConflict)
		}
		return result, nil
	}

	booking := &models.Booking{UserID: userID, TourID: tourID, IdempotentKey: key}
	replayed, err := s.store.CreateBookingWithCapacity(ctx, booking)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientCapacity) {
			metrics.IncCapacityRejection()
			s.logger.Info().Int64("tour_id", tourID).Int64("user_id", userID).Msg("booking rejected, tour is full")
		}
		return nil, err
	}

	qr, err := s.store.EnsureQrForBooking(ctx, booking.ID)
	if err != nil {
		// The booking committed; a retry with the same key repairs
		// the missing reference.
		return nil, err
	}

	storeReplay(ctx, s.cache, s.logger, &models.ReplayRecord{
		Key: key, Operation: opBook, BookingID: booking.ID, Status: booking.Status,
	})

	if !replayed {
		metrics.IncBooking(booking.Status)
		s.publishBookingEvent(events.EventBookingCreated, booking, qr.ID, false)
		s.logger.Info().
			Int64("booking_id", booking.ID).
			Int64("tour_id", tourID).
			Int64("user_id", userID).
			Msg("booking created")
	} else {
		metrics.IncReplay(opBook)
	}

	return &models.BookingResult{Booking: booking, QrReferenceID: qr.ID, Replayed: replayed}, nil
}

// CancelBooking releases the seat and, for a completed booking,
// refunds the full tour price to the user.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, key string) (*models.BookingResult, error) {
	if err := validateIdempotencyKey(key); err != nil {
		return nil, err
	}

	if record, err := checkReplay(ctx, s.cache, s.logger, key, opCancel); err != nil {
		return nil, err
	} else if record != nil {
		if record.BookingID != bookingID {
			return nil, fmt.Errorf("idempotency key %s belongs to booking %d: %w", key, record.BookingID, database.ErrConflict)
		}
		return s.bookingResultByID(ctx, bookingID, true)
	}

	booking, refund, replayed, err := s.store.CancelBookingWithRelease(ctx, bookingID, key)
	if err != nil {
		return nil, err
	}

	storeReplay(ctx, s.cache, s.logger, &models.ReplayRecord{
		Key: key, Operation: opCancel, BookingID: bookingID, Status: booking.Status,
	})

	result := &models.BookingResult{Booking: booking, Replayed: replayed}
	if refund != nil {
		result.RefundIssued = true
		result.RefundCents = refund.AmountCents
	}

	if !replayed {
		metrics.IncBooking(models.BookingStatusCancelled)
		s.publishBookingEvent(events.EventBookingCancelled, booking, 0, false)
		if refund != nil {
			metrics.IncTransaction(models.TransactionRefund)
			s.publishLedgerEvent(events.EventPaymentRefunded, refund)
		}
		s.logger.Info().
			Int64("booking_id", bookingID).
			Bool("refund_issued", refund != nil).
			Msg("booking cancelled")
	}

	return result, nil
}

// GetBooking returns the booking with its payment reference, if any.
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*models.BookingResult, error) {
	return s.bookingResultByID(ctx, bookingID, false)
}

func (s *BookingService) bookingResultByID(ctx context.Context, bookingID int64, replayed bool) (*models.BookingResult, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	result := &models.BookingResult{Booking: booking, Replayed: replayed}
	if qr, err := s.store.GetQrByBooking(ctx, bookingID); err == nil {
		result.QrReferenceID = qr.ID
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	return result, nil
}

// ExpirePendingBookings cancels pending bookings older than the
// configured TTL, releasing their seats. Runs from the scheduler.
func (s *BookingService) ExpirePendingBookings(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.PendingTTL())
	ids, err := s.store.ListExpiredPendingBookings(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		booking, err := s.store.ExpirePendingBooking(ctx, id, uuid.NewString())
		if err != nil {
			// The booking may have been paid or cancelled since listing.
			if errors.Is(err, database.ErrInvalidState) {
				continue
			}
			s.logger.Error().Err(err).Int64("booking_id", id).Msg("failed to expire booking")
			failed++
			continue
		}
		metrics.IncBooking(models.BookingStatusCancelled)
		s.publishBookingEvent(events.EventBookingExpired, booking, 0, false)
	}

	if len(ids) > 0 {
		s.logger.Info().Int("expired", len(ids)-failed).Int("failed", failed).Msg("pending booking sweep finished")
	}
	if failed > 0 {
		return fmt.Errorf("failed to expire %d of %d bookings", failed, len(ids))
	}
	return nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, qrID int64, replayed bool) {
	if s.bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		TourID:        booking.TourID,
		Status:        booking.Status,
		QrReferenceID: qrID,
		Replayed:      replayed,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishLedgerEvent(eventType string, txn *models.Transaction) {
	if s.bus == nil {
		return
	}
	payload := events.LedgerEventPayload{
		TransactionID: txn.ID,
		Type:          txn.Type,
		FromWalletID:  txn.FromWalletID,
		ToWalletID:    txn.ToWalletID,
		BookingID:     txn.BookingID,
		AmountCents:   txn.AmountCents,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("transaction_id", txn.ID).Msg("publish event error")
	}
}
