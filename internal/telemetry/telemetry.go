package telemetry

import (
	"context"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	Namespace = "powersense"
	// TracerName is the instrumentation scope of every span this module starts.
	TracerName = "github.com/ANIKETSHETTY47/powersense-dashboard"
)

// Metrics holds the dashboard collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Refreshes        *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	Fallbacks        *prometheus.CounterVec
	Loading          prometheus.Gauge
	ChartsLive       prometheus.Gauge
	StaleDiscarded   prometheus.Counter
	AlertsSent       prometheus.Counter
	TriggersRejected *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "refreshes_total",
			Help:      "Refresh cycles by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and normalizing one payload.",
			Buckets:   prometheus.DefBuckets,
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dataset_fallbacks_total",
			Help:      "Datasets replaced by a synthetic generator.",
		}, []string{"kind", "reason"}),
		Loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "loading",
			Help:      "1 while a fetch is in flight.",
		}),
		ChartsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "charts_live",
			Help:      "Live rendering contexts.",
		}),
		StaleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer one was already published.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "anomaly_alerts_total",
			Help:      "HIGH severity anomalies published to SNS.",
		}),
		TriggersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "triggers_rejected_total",
			Help:      "Manual or MQTT refresh triggers that did not start a refresh.",
		}, []string{"reason"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "payload_cache_lookups_total",
			Help:      "Payload cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.Refreshes, m.RefreshDuration, m.Fallbacks, m.Loading, m.ChartsLive,
		m.StaleDiscarded, m.AlertsSent, m.TriggersRejected, m.CacheLookups,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RefreshResult(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefresh(seconds float64) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(seconds)
}

func (m *Metrics) Fallback(kind, reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) SetLoading(loading bool) {
	if m == nil {
		return
	}
	if loading {
		m.Loading.Set(1)
		return
	}
	m.Loading.Set(0)
}

func (m *Metrics) SetChartsLive(n int) {
	if m == nil {
		return
	}
	m.ChartsLive.Set(float64(n))
}

func (m *Metrics) Stale() {
	if m == nil {
		return
	}
	m.StaleDiscarded.Inc()
}

func (m *Metrics) AlertSent() {
	if m == nil {
		return
	}
	m.AlertsSent.Inc()
}

func (m *Metrics) TriggerRejected(reason string) {
	if m == nil {
		return
	}
	m.TriggersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// InitTracer installs the global tracer provider. When disabled a no-op
// provider is installed. The returned func flushes pending spans.
func InitTracer(enabled bool, w io.Writer) (func(context.Context) error, error) {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
