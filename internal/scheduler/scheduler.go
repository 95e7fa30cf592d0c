package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler fires functions once at a point in time and runs recurring
// jobs with backoff on failure. Scheduled functions call the same
// service methods request handlers do; there is no privileged path
// around the locking discipline.
type Scheduler struct {
	logger *zerolog.Logger
	retry  RetryPolicy

	mu     sync.Mutex
	timers []*time.Timer
	wg     sync.WaitGroup
	closed bool
}

func New(logger *zerolog.Logger, retry RetryPolicy) *Scheduler {
	return &Scheduler{logger: logger, retry: retry}
}

// Schedule fires fn once at the given time. A time in the past fires
// immediately. After Stop, new submissions are dropped.
func (s *Scheduler) Schedule(at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn().Time("at", at).Msg("scheduler stopped, dropping job")
		return
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.wg.Add(1)
	timer := time.AfterFunc(delay, func() {
		defer s.wg.Done()
		defer s.recover()
		fn()
	})
	s.timers = append(s.timers, timer)
}

// RunEvery runs fn on the interval until ctx is cancelled. A failing
// fn is retried with the backoff policy before the next tick.
func (s *Scheduler) RunEvery(ctx context.Context, interval time.Duration, name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runWithRetry(ctx, name, fn)
			}
		}
	}()
}

func (s *Scheduler) runWithRetry(ctx context.Context, name string, fn func(ctx context.Context) error) {
	var err error
	for attempt := 1; attempt <= s.retry.MaxRetries+1; attempt++ {
		if err = fn(ctx); err == nil {
			return
		}
		if attempt > s.retry.MaxRetries {
			break
		}

		delay := s.retry.NextDelay(attempt)
		s.logger.Warn().Err(err).Str("job", name).Int("attempt", attempt).Dur("retry_in", delay).Msg("job failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
	s.logger.Error().Err(err).Str("job", name).Msg("job failed, giving up until next tick")
}

func (s *Scheduler) recover() {
	if r := recover(); r != nil {
		s.logger.Error().Interface("panic", r).Msg("scheduled job panicked")
	}
}

// Stop cancels pending one-shot jobs and waits for running ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for _, t := range s.timers {
		if t.Stop() {
			// Timer never fired, release its waiter.
			s.wg.Done()
		}
	}
	s.timers = nil
	s.mu.Unlock()

	s.wg.Wait()
}
