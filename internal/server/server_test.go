package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const payload = `{
  "metrics": {"lstmMae": 1.234, "anomaliesCount": 1, "anomalyRatePct": 2.5},
  "anomalyList": [
    {"timestamp": "2017-01-01 10:00", "residual": 9, "actual": 100, "pred": 80},
    {"timestamp": "2017-01-01 11:00", "residual": 1, "actual": 100, "pred": 98}
  ],
  "forecastTable": [
    {"dateTime": "2017-01-02 00:00", "actual": 10, "predicted": 11, "upperBound": 12, "lowerBound": 9}
  ]
}`

func newTestServer(t *testing.T, src service.Source) (*Server, *service.Dashboard) {
	t.Helper()
	m := telemetry.NewMetrics()
	d := service.New(src, service.WithMetrics(m), service.WithRateLimit(time.Hour, 1))
	c := charts.NewController(charts.NewChartFactory())
	for _, s := range charts.Surfaces {
		require.NoError(t, c.Attach(s))
	}
	d.Subscribe(func(st *service.State) {
		_ = c.Apply(st.Snapshot, st.Loading)
	})
	srv := New(d, c, m)
	t.Cleanup(func() {
		d.Wait()
		srv.Close()
		c.Close()
	})
	return srv, d
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestDashboardBeforeFirstRefresh(t *testing.T) {
	srv, _ := newTestServer(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(payload), nil
	}))

	rec := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PowerSense Dashboard")

	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/snapshot").Code)
	assert.Equal(t, http.StatusNoContent, get(t, srv, "/charts/hourly.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/charts/nope.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/unknown").Code)
}

func TestDashboardRendersSnapshot(t *testing.T) {
	srv, d := newTestServer(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(payload), nil
	}))
	require.NoError(t, d.Refresh(context.Background()))

	body := get(t, srv, "/dashboard").Body.String()
	assert.Contains(t, body, "1.23")
	assert.Contains(t, body, "2017-01-01 10:00")
	assert.Contains(t, body, "HIGH")
	assert.Contains(t, body, "1 records")
	assert.NotContains(t, body, `id="banner"`)

	rec := get(t, srv, "/charts/lstm.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = get(t, srv, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Status   Status          `json:"status"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(1), out.Status.Seq)
	assert.False(t, out.Status.Loading)
	assert.Equal(t, len(charts.Surfaces), out.Status.Charts.Live)
	assert.NotEmpty(t, out.Status.Synthetic)
}

func TestDashboardShowsErrorBanner(t *testing.T) {
	srv, d := newTestServer(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return nil, errors.New("upstream down")
	}))
	require.Error(t, d.Refresh(context.Background()))

	body := get(t, srv, "/").Body.String()
	assert.Contains(t, body, "upstream down Run the model pipeline and restart the backend for live data.")
	assert.Contains(t, body, "Sample data shown")
	assert.Contains(t, body, `<button id="dismiss" type="button"`)
	assert.Contains(t, body, `getElementById("banner").hidden = true`)

	// synthetic data is still drawn
	assert.Equal(t, http.StatusOK, get(t, srv, "/charts/hourly.png").Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(get(t, srv, "/healthz").Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
}

func TestRefreshEndpoint(t *testing.T) {
	release := make(chan struct{})
	srv, d := newTestServer(t, service.SourceFunc(func(ctx context.Context) ([]byte, error) {
		select {
		case <-release:
			return []byte(payload), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	assert.Equal(t, http.StatusAccepted, post(srv, "/api/refresh").Code)
	assert.Equal(t, http.StatusConflict, post(srv, "/api/refresh").Code)
	assert.Contains(t, get(t, srv, "/").Body.String(), "Refreshing...")

	close(release)
	d.Wait()

	rec := post(srv, "/api/refresh")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, srv, "/api/refresh").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, d := newTestServer(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(payload), nil
	}))
	require.NoError(t, d.Refresh(context.Background()))

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `powersense_refreshes_total{result="ok"} 1`)
}

func TestWebSocketPushesUpdates(t *testing.T) {
	srv, d := newTestServer(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(payload), nil
	}))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Type string `json:"type"`
		Data Status `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "init", msg.Type)
	assert.Equal(t, uint64(0), msg.Data.Seq)

	require.Eventually(t, func() bool { return srv.hub.size() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Refresh(context.Background()))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Type)
	assert.True(t, msg.Data.Loading)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Type)
	assert.False(t, msg.Data.Loading)
	assert.Equal(t, uint64(1), msg.Data.Seq)
}
