package service

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Scheduler refreshes a Dashboard periodically. After a failed fetch the
// next attempt is delayed exponentially, capped at MaxBackoff.
type Scheduler struct {
	dash       *Dashboard
	clock      clock.Clock
	interval   time.Duration
	maxBackoff time.Duration
}

func NewScheduler(d *Dashboard, interval, maxBackoff time.Duration, c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	if maxBackoff < interval {
		maxBackoff = interval
	}
	return &Scheduler{dash: d, clock: c, interval: interval, maxBackoff: maxBackoff}
}

func (s *Scheduler) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	b.MaxInterval = s.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = s.clock
	b.Reset()
	return b
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	b := s.backoff()
	for {
		delay := s.next(ctx, b)
		t := s.clock.Timer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// next runs one refresh and returns how long to wait before the next one.
func (s *Scheduler) next(ctx context.Context, b *backoff.ExponentialBackOff) time.Duration {
	err := s.dash.Refresh(ctx)
	switch {
	case err == nil:
		b.Reset()
		return s.interval
	case errors.Is(err, ErrRefreshInFlight):
		return s.interval
	}
	delay := b.NextBackOff()
	if delay == backoff.Stop {
		delay = s.maxBackoff
	}
	log.Warn().Err(err).Dur("retry_in", delay).Msg("scheduled refresh failed")
	return delay
}
