package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const hourlyPayload = `{"hourly":{"labels":["00:00","01:00"],"data":[1.5,2.5]}}`

func staticSource(body string) Source {
	return SourceFunc(func(context.Context) ([]byte, error) { return []byte(body), nil })
}

func failingSource(err error) Source {
	return SourceFunc(func(context.Context) ([]byte, error) { return nil, err })
}

// gatedSource blocks every fetch until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSource() *gatedSource {
	return &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Fetch(ctx context.Context) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return []byte(hourlyPayload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	d := New(staticSource(hourlyPayload))

	var seen []bool
	d.Subscribe(func(s *State) { seen = append(seen, s.Loading) })

	require.NoError(t, d.Refresh(context.Background()))

	st := d.State()
	require.NotNil(t, st.Snapshot)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.True(t, st.Live())
	assert.Equal(t, uint64(1), st.Snapshot.Seq)
	assert.Equal(t, domain.OriginLive, st.Snapshot.Hourly.Origin())
	assert.Equal(t, []float64{1.5, 2.5}, domain.Values(st.Snapshot.Hourly.Data, 0))
	assert.Equal(t, []bool{true, false}, seen)
}

func TestRefreshFailureWithoutSnapshotIsSynthetic(t *testing.T) {
	d := New(failingSource(&domain.TransportError{Status: 500, Msg: "ML outputs not found"}))

	err := d.Refresh(context.Background())
	require.Error(t, err)

	st := d.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "ML outputs not found", st.Error)
	assert.False(t, st.Live())
	assert.Len(t, st.Snapshot.SyntheticKinds(), len(domain.Kinds))
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	var fail bool
	src := SourceFunc(func(context.Context) ([]byte, error) {
		if fail {
			return nil, &domain.TransportError{Err: errors.New("connection refused")}
		}
		return []byte(hourlyPayload), nil
	})
	d := New(src)

	require.NoError(t, d.Refresh(context.Background()))
	before := d.State().Snapshot

	fail = true
	require.Error(t, d.Refresh(context.Background()))

	st := d.State()
	assert.Same(t, before, st.Snapshot)
	assert.Equal(t, "connection refused", st.Error)

	fail = false
	require.NoError(t, d.Refresh(context.Background()))
	assert.Empty(t, d.State().Error, "a successful refresh clears the error")
	assert.Equal(t, uint64(3), d.State().Snapshot.Seq)
}

func TestOverlappingRefreshRejected(t *testing.T) {
	src := newGatedSource()
	d := New(src, WithRateLimit(time.Millisecond, 10))

	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-src.started

	assert.True(t, d.State().Loading)
	assert.ErrorIs(t, d.Refresh(context.Background()), ErrRefreshInFlight)
	assert.False(t, d.Trigger())
	assert.ErrorIs(t, d.TryTrigger(), ErrRefreshInFlight)

	close(src.release)
	require.NoError(t, <-done)
	assert.False(t, d.State().Loading)
	assert.Equal(t, uint64(1), d.State().Snapshot.Seq)
}

func TestStaleResponseDiscarded(t *testing.T) {
	m := telemetry.NewMetrics()
	d := New(staticSource(hourlyPayload), WithMetrics(m))

	d.mu.Lock()
	d.published = 5
	d.mu.Unlock()

	require.NoError(t, d.Refresh(context.Background()))

	st := d.State()
	assert.Nil(t, st.Snapshot, "an older response must not overwrite a newer one")
	assert.False(t, st.Loading)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleDiscarded))
}

func TestTriggerRateLimited(t *testing.T) {
	m := telemetry.NewMetrics()
	d := New(staticSource(hourlyPayload), WithRateLimit(time.Hour, 1), WithMetrics(m))

	assert.True(t, d.Trigger())
	d.Wait()
	require.NotNil(t, d.State().Snapshot)

	assert.ErrorIs(t, d.TryTrigger(), ErrRateLimited)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggersRejected.WithLabelValues("rate_limited")))
}

func TestRefreshTimeout(t *testing.T) {
	src := newGatedSource()
	d := New(src, WithTimeout(10*time.Millisecond))

	err := d.Refresh(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), d.State().Error)
}

func TestListenersRunInOrder(t *testing.T) {
	d := New(staticSource(`{}`))
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		d.Subscribe(func(s *State) {
			if !s.Loading {
				order = append(order, i)
			}
		})
	}
	require.NoError(t, d.Refresh(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestListenersSeeStatesInPublishOrder(t *testing.T) {
	var calls int
	release := make(chan struct{})
	d := New(SourceFunc(func(ctx context.Context) ([]byte, error) {
		calls++
		if calls > 1 {
			<-release
		}
		return []byte(hourlyPayload), nil
	}), WithRateLimit(time.Millisecond, 10))

	var retriggered bool
	d.Subscribe(func(s *State) {
		if !s.Loading && !retriggered {
			retriggered = true
			require.NoError(t, d.TryTrigger())
		}
	})
	var mu sync.Mutex
	var seen []bool
	d.Subscribe(func(s *State) {
		mu.Lock()
		seen = append(seen, s.Loading)
		mu.Unlock()
	})

	require.NoError(t, d.Refresh(context.Background()))
	mu.Lock()
	assert.Equal(t, []bool{true, false, true}, seen, "the loading state of the next refresh comes last")
	mu.Unlock()

	close(release)
	d.Wait()
	mu.Lock()
	assert.Equal(t, []bool{true, false, true, false}, seen)
	mu.Unlock()
	assert.Equal(t, uint64(2), d.State().Snapshot.Seq)
}
