package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RefreshResult("ok")
		m.SetLoading(true)
		m.Fallback("hourly", "missing")
		m.Stale()
		m.AlertSent()
		m.TriggerRejected("rate_limited")
		m.CacheLookup("hit")
		m.SetChartsLive(3)
		m.ObserveRefresh(0.1)
	})
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.RefreshResult("ok")
	m.RefreshResult("ok")
	m.RefreshResult("error")
	m.Fallback("lstm", "missing")
	m.SetLoading(true)
	m.SetChartsLive(11)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("lstm", "missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loading))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.ChartsLive))

	m.SetLoading(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Loading))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.AlertSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "powersense_anomaly_alerts_total 1")
}

func TestInitTracer(t *testing.T) {
	shutdown, err := InitTracer(false, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	var buf bytes.Buffer
	shutdown, err = InitTracer(true, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "refresh")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "refresh"`)

	_, err = InitTracer(false, nil)
	require.NoError(t, err)
}
