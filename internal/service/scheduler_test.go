package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerBacksOffOnFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	src := SourceFunc(func(context.Context) ([]byte, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return []byte(`{}`), nil
	})
	mock := clock.NewMock()
	s := NewScheduler(New(src, WithClock(mock)), time.Minute, 5*time.Minute, mock)
	b := s.backoff()

	ctx := context.Background()
	assert.Equal(t, time.Minute, s.next(ctx, b))
	assert.Equal(t, 2*time.Minute, s.next(ctx, b))
	assert.Equal(t, 4*time.Minute, s.next(ctx, b))
	assert.Equal(t, 5*time.Minute, s.next(ctx, b), "capped")

	fail.Store(false)
	assert.Equal(t, time.Minute, s.next(ctx, b))

	fail.Store(true)
	assert.Equal(t, time.Minute, s.next(ctx, b), "backoff restarts after a success")
}

func TestSchedulerRunTicks(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(`{}`), nil
	})
	mock := clock.NewMock()
	d := New(src, WithClock(mock))
	s := NewScheduler(d, time.Minute, 0, mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return calls.Load() >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
	assert.NotNil(t, d.State().Snapshot)
}
