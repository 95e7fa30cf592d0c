package scheduler

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	logger := zerolog.New(os.Stdout)
	return New(&logger, RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      20 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func TestScheduleFiresOnce(t *testing.T) {
	s := newTestScheduler()

	var fired atomic.Int32
	s.Schedule(time.Now().Add(10*time.Millisecond), func() {
		fired.Add(1)
	})

	s.Stop()
	assert.Equal(t, int32(1), fired.Load())
}

func TestSchedulePastTimeFiresImmediately(t *testing.T) {
	s := newTestScheduler()

	done := make(chan struct{})
	s.Schedule(time.Now().Add(-time.Second), func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not fire")
	}
	s.Stop()
}

func TestScheduleTwoJobsAtSameInstant(t *testing.T) {
	s := newTestScheduler()

	var sum atomic.Int64
	at := time.Now().Add(10 * time.Millisecond)
	s.Schedule(at, func() { sum.Add(+5) })
	s.Schedule(at, func() { sum.Add(-3) })

	s.Stop()
	assert.Equal(t, int64(2), sum.Load())
}

func TestScheduleAfterStopIsDropped(t *testing.T) {
	s := newTestScheduler()
	s.Stop()

	var fired atomic.Int32
	s.Schedule(time.Now(), func() {
		fired.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestScheduleRecoversFromPanic(t *testing.T) {
	s := newTestScheduler()

	s.Schedule(time.Now(), func() {
		panic("boom")
	})

	// Stop waits for the job; a leaked panic would fail the test.
	s.Stop()
}

func TestRunEveryTicksAndRetries(t *testing.T) {
	s := newTestScheduler()
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	s.RunEvery(ctx, 10*time.Millisecond, "flaky-job", func(ctx context.Context) error {
		// First call fails and is retried before the next tick.
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
}
