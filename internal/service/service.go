// Package service owns the dashboard state. The Dashboard fetches the
// upstream payload, normalizes it and publishes immutable snapshots to
// its subscribers.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/normalize"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

var (
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrRateLimited     = errors.New("refresh rate limited")
)

// Source produces one raw charts payload per call.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// State is what the presentation layer reads. A published State is never
// modified.
type State struct {
	Snapshot  *domain.Snapshot
	Report    normalize.Report
	Loading   bool
	Error     string
	Err       error
	UpdatedAt time.Time
}

// Live reports whether the snapshot came from a successful fetch.
func (s *State) Live() bool { return s.Snapshot != nil && s.Err == nil }

type Listener func(*State)

type Dashboard struct {
	source     Source
	normalizer *normalize.Normalizer
	limiter    *rate.Limiter
	metrics    *telemetry.Metrics
	clock      clock.Clock
	timeout    time.Duration

	mu        sync.Mutex
	inFlight  bool
	issued    uint64
	published uint64
	listeners []Listener
	// pending holds published states not yet delivered to listeners,
	// in publish order. Only one goroutine delivers at a time.
	pending    []*State
	delivering bool

	state atomic.Pointer[State]
	wg    sync.WaitGroup
}

type Option func(*Dashboard)

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(d *Dashboard) { d.normalizer = n }
}

// WithRateLimit bounds manual triggers. Scheduled refreshes are not limited.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(d *Dashboard) { d.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(d *Dashboard) { d.clock = c }
}

// WithTimeout bounds a single fetch. Zero leaves the caller's context alone.
func WithTimeout(t time.Duration) Option {
	return func(d *Dashboard) { d.timeout = t }
}

func New(src Source, opts ...Option) *Dashboard {
	d := &Dashboard{
		source:  src,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		clock:   clock.New(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.normalizer == nil {
		d.normalizer = normalize.New(normalize.WithClock(d.clock))
	}
	d.state.Store(&State{})
	return d
}

// State returns the current published state. It is never nil.
func (d *Dashboard) State() *State { return d.state.Load() }

// Subscribe registers fn to run after every publish, in registration order.
func (d *Dashboard) Subscribe(fn Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Refresh fetches and publishes one snapshot. It returns ErrRefreshInFlight
// when another refresh has not completed. A fetch failure is published as
// the state's error and also returned.
func (d *Dashboard) Refresh(ctx context.Context) error {
	seq, ok := d.begin()
	if !ok {
		return ErrRefreshInFlight
	}
	return d.run(ctx, seq)
}

func (d *Dashboard) run(ctx context.Context, seq uint64) error {
	ctx, span := telemetry.Tracer().Start(ctx, "dashboard.refresh")
	defer span.End()
	span.SetAttributes(attribute.Int64("refresh.seq", int64(seq)))

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := d.clock.Now()
	raw, err := d.source.Fetch(ctx)
	d.metrics.ObserveRefresh(d.clock.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		d.fail(seq, err)
		return err
	}

	snap, rep := d.normalizer.Normalize(raw)
	span.SetAttributes(
		attribute.Int("normalize.live", len(rep.Live)),
		attribute.Int("normalize.fallbacks", len(rep.Fallbacks)),
	)
	d.succeed(seq, snap, rep)
	return nil
}

// Trigger starts a refresh in the background. It returns false when a
// refresh is already running or the rate limiter rejects the call.
func (d *Dashboard) Trigger() bool {
	if err := d.TryTrigger(); err != nil {
		return false
	}
	return true
}

// TryTrigger is Trigger with the rejection reason.
func (d *Dashboard) TryTrigger() error {
	if d.State().Loading {
		d.metrics.TriggerRejected("in_flight")
		return ErrRefreshInFlight
	}
	if !d.limiter.Allow() {
		d.metrics.TriggerRejected("rate_limited")
		return ErrRateLimited
	}
	seq, ok := d.begin()
	if !ok {
		d.metrics.TriggerRejected("in_flight")
		return ErrRefreshInFlight
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.run(context.Background(), seq); err != nil {
			log.Warn().Err(err).Msg("triggered refresh failed")
		}
	}()
	return nil
}

// Wait blocks until every triggered refresh has returned.
func (d *Dashboard) Wait() { d.wg.Wait() }

func (d *Dashboard) begin() (uint64, bool) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return 0, false
	}
	d.inFlight = true
	d.issued++
	seq := d.issued

	cur := d.state.Load()
	next := *cur
	next.Loading = true
	d.state.Store(&next)
	d.pending = append(d.pending, &next)
	d.mu.Unlock()

	d.metrics.SetLoading(true)
	d.deliver()
	return seq, true
}

func (d *Dashboard) succeed(seq uint64, snap *domain.Snapshot, rep normalize.Report) {
	snap.Seq = seq
	for _, f := range rep.Fallbacks {
		d.metrics.Fallback(string(f.Kind), string(f.Reason))
	}
	log.Info().
		Uint64("seq", seq).
		Str("snapshot", snap.ID).
		Object("report", rep).
		Msg("snapshot published")
	d.publish(seq, func(*State) State {
		return State{Snapshot: snap, Report: rep, UpdatedAt: d.clock.Now()}
	}, "ok")
}

func (d *Dashboard) fail(seq uint64, err error) {
	msg := domain.UserMessage(err)
	log.Error().Err(err).Uint64("seq", seq).Msg("refresh failed")
	d.publish(seq, func(cur *State) State {
		next := State{
			Snapshot:  cur.Snapshot,
			Report:    cur.Report,
			Error:     msg,
			Err:       err,
			UpdatedAt: d.clock.Now(),
		}
		if next.Snapshot == nil {
			snap, rep := d.normalizer.Normalize(nil)
			snap.Seq = seq
			next.Snapshot, next.Report = snap, rep
		}
		return next
	}, "error")
}

// publish swaps in the state built by next unless a newer sequence has
// already been published.
func (d *Dashboard) publish(seq uint64, next func(cur *State) State, result string) {
	d.mu.Lock()
	d.inFlight = false
	if last := d.published; seq <= last {
		cur := d.state.Load()
		if cur.Loading {
			cleared := *cur
			cleared.Loading = false
			d.state.Store(&cleared)
		}
		d.mu.Unlock()
		d.metrics.SetLoading(false)
		d.metrics.Stale()
		log.Warn().Uint64("seq", seq).Uint64("published", last).Msg("discarding stale response")
		return
	}
	d.published = seq
	st := next(d.state.Load())
	st.Loading = false
	d.state.Store(&st)
	d.pending = append(d.pending, &st)
	d.mu.Unlock()

	d.metrics.SetLoading(false)
	d.metrics.RefreshResult(result)
	d.deliver()
}

// deliver hands queued states to the listeners in the order they were
// stored. A listener that starts a refresh itself only enqueues; the
// outer loop delivers that state after the current one.
func (d *Dashboard) deliver() {
	for {
		d.mu.Lock()
		if d.delivering || len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		d.delivering = true
		st := d.pending[0]
		d.pending = d.pending[1:]
		listeners := d.listeners
		d.mu.Unlock()

		d.notify(listeners, st)
	}
}

func (d *Dashboard) notify(listeners []Listener, st *State) {
	defer func() {
		d.mu.Lock()
		d.delivering = false
		d.mu.Unlock()
	}()
	for _, fn := range listeners {
		fn(st)
	}
}
