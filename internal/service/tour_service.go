package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gout/internal/config"
	"gout/internal/database"
	"gout/internal/domain"
	"gout/internal/metrics"
	"gout/internal/models"

	"github.com/rs/zerolog"
)

// TourService publishes tours and exposes the capacity counter to the
// scheduler and the admin surface.
type TourService struct {
	store     domain.Store
	scheduler domain.Scheduler
	cfg       config.BookingConfig
	logger    *zerolog.Logger
}

func NewTourService(store domain.Store, sched domain.Scheduler, cfg config.BookingConfig, logger *zerolog.Logger) *TourService {
	return &TourService{store: store, scheduler: sched, cfg: cfg, logger: logger}
}

// PublishTour creates the tour with its capacity counter. A zero price
// falls back to the platform-wide tour price. Capacity is immutable
// once published.
func (s *TourService) PublishTour(ctx context.Context, title string, companyID, capacityLimit, priceCents int64) (*models.Tour, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", database.ErrValidation)
	}
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id must be positive", database.ErrValidation)
	}
	if priceCents == 0 {
		priceCents = s.cfg.TourPriceCents
	}

	tour := &models.Tour{
		Title:         title,
		CompanyID:     companyID,
		CapacityLimit: capacityLimit,
		PriceCents:    priceCents,
	}
	if err := s.store.CreateTourWithCounter(ctx, tour); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("tour_id", tour.ID).
		Int64("capacity_limit", capacityLimit).
		Int64("price_cents", priceCents).
		Msg("tour published")
	return tour, nil
}

func (s *TourService) ListTours(ctx context.Context) ([]*models.TourAvailability, error) {
	return s.store.ListToursWithAvailability(ctx)
}

func (s *TourService) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	return s.store.GetTour(ctx, id)
}

// AdjustCapacity applies a raw delta to the tour counter. Both the
// admin surface and scheduled jobs land here, on the same locking path
// as bookings.
func (s *TourService) AdjustCapacity(ctx context.Context, tourID, delta int64) (int64, error) {
	reserved, err := s.store.AdjustCapacityWithLock(ctx, tourID, delta)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientCapacity) {
			metrics.IncCapacityRejection()
		}
		return 0, err
	}
	s.logger.Info().Int64("tour_id", tourID).Int64("delta", delta).Int64("reserved", reserved).Msg("capacity adjusted")
	return reserved, nil
}

// SimulateCapacityRace schedules a +5 and a -3 adjustment to fire at
// the same instant. With the per-tour lock in place the counter always
// lands on the arithmetic sum; without it one of the updates would be
// lost.
func (s *TourService) SimulateCapacityRace(tourID int64, at time.Time) {
	adjust := func(delta int64) func() {
		return func() {
			if _, err := s.AdjustCapacity(context.Background(), tourID, delta); err != nil {
				s.logger.Warn().Err(err).Int64("tour_id", tourID).Int64("delta", delta).Msg("race simulation adjustment rejected")
			}
		}
	}
	s.scheduler.Schedule(at, adjust(+5))
	s.scheduler.Schedule(at, adjust(-3))
	s.logger.Info().Int64("tour_id", tourID).Time("at", at).Msg("capacity race simulation scheduled")
}
