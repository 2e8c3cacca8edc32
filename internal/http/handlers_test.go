package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const payload = `{
  "metrics": {"mae": 0.5, "totalSamples": 120, "anomalyThreshold": "n/a"},
  "anomalyList": [
    {"timestamp": "t1", "residual": 30, "actual": 100, "pred": 70},
    {"timestamp": "t2", "residual": 10, "actual": 100, "pred": 90},
    {"timestamp": "t3", "residual": 1, "actual": 100, "pred": 99}
  ]
}`

type memUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *memUploader) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return "https://example.test/" + key, nil
}

func setup(t *testing.T, src service.Source, withExporter bool) (*fiber.App, *service.Dashboard, *memUploader) {
	t.Helper()
	m := telemetry.NewMetrics()
	d := service.New(src, service.WithMetrics(m), service.WithRateLimit(time.Hour, 1))
	c := charts.NewController(charts.NewChartFactory())
	require.NoError(t, c.Attach(charts.SurfaceHourly))
	d.Subscribe(func(st *service.State) { _ = c.Apply(st.Snapshot, st.Loading) })
	t.Cleanup(func() {
		d.Wait()
		c.Close()
	})

	deps := Deps{Dashboard: d, Charts: c, Metrics: m}
	var up *memUploader
	if withExporter {
		up = &memUploader{}
		deps.Exporter = service.NewExporter(d, c, up, "")
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	Register(app, deps)
	return app, d, up
}

func do(t *testing.T, app *fiber.App, method, path string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func okSource() service.Source {
	return service.SourceFunc(func(context.Context) ([]byte, error) { return []byte(payload), nil })
}

func TestSnapshotUnavailableBeforeRefresh(t *testing.T) {
	app, _, _ := setup(t, okSource(), false)

	code, body := do(t, app, "GET", "/snapshot")
	assert.Equal(t, 503, code)
	assert.JSONEq(t, `{"error":"no snapshot yet"}`, string(body))

	code, _ = do(t, app, "GET", "/charts/hourly")
	assert.Equal(t, 204, code)

	code, body = do(t, app, "GET", "/health")
	assert.Equal(t, 200, code)
	assert.Contains(t, string(body), `"degraded"`)
}

func TestAnomaliesFilterBySeverity(t *testing.T) {
	app, d, _ := setup(t, okSource(), false)
	require.NoError(t, d.Refresh(context.Background()))

	var out struct {
		Origin  string `json:"origin"`
		Count   int    `json:"count"`
		Records []struct {
			Timestamp string `json:"timestamp"`
			Severity  string `json:"severity"`
		} `json:"records"`
	}
	code, body := do(t, app, "GET", "/anomalies")
	require.Equal(t, 200, code)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "live", out.Origin)
	assert.Equal(t, 3, out.Count)

	code, body = do(t, app, "GET", "/anomalies?severity=high")
	require.Equal(t, 200, code)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Records, 1)
	assert.Equal(t, "t1", out.Records[0].Timestamp)
	assert.Equal(t, "HIGH", out.Records[0].Severity)

	code, _ = do(t, app, "GET", "/anomalies?severity=extreme")
	assert.Equal(t, 400, code)
}

func TestModelMetricsMarkUnavailable(t *testing.T) {
	app, d, _ := setup(t, okSource(), false)
	require.NoError(t, d.Refresh(context.Background()))

	code, body := do(t, app, "GET", "/metrics/model")
	require.Equal(t, 200, code)
	var out []metricView
	require.NoError(t, json.Unmarshal(body, &out))

	byName := map[string]metricView{}
	for _, m := range out {
		byName[string(m.Name)] = m
	}
	assert.Equal(t, "0.5000", byName["mae"].Display)
	assert.Equal(t, "120", byName["totalSamples"].Display)
	assert.False(t, byName["anomalyThreshold"].Value.Valid)
	assert.Equal(t, "—", byName["anomalyThreshold"].Display)
}

func TestReportAndSummary(t *testing.T) {
	app, d, _ := setup(t, okSource(), false)
	require.NoError(t, d.Refresh(context.Background()))

	code, body := do(t, app, "GET", "/report")
	require.Equal(t, 200, code)
	var rep struct {
		Live      []string `json:"live"`
		Fallbacks []struct {
			Kind string `json:"kind"`
		} `json:"fallbacks"`
	}
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Contains(t, rep.Live, "anomalyList")
	assert.NotEmpty(t, rep.Fallbacks)

	code, body = do(t, app, "GET", "/summary")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"HIGH":1`)

	code, body = do(t, app, "GET", "/correlation")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"labels"`)
}

func TestChartEndpoint(t *testing.T) {
	app, d, _ := setup(t, okSource(), false)
	require.NoError(t, d.Refresh(context.Background()))

	code, body := do(t, app, "GET", "/charts/hourly")
	require.Equal(t, 200, code)
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))

	code, _ = do(t, app, "GET", "/charts/lstm")
	assert.Equal(t, 204, code, "not attached")

	code, _ = do(t, app, "GET", "/charts/bogus")
	assert.Equal(t, 404, code)
}

func TestRefreshEndpoint(t *testing.T) {
	release := make(chan struct{})
	app, d, _ := setup(t, service.SourceFunc(func(ctx context.Context) ([]byte, error) {
		<-release
		return []byte(payload), nil
	}), false)

	code, _ := do(t, app, "POST", "/refresh")
	assert.Equal(t, 202, code)
	code, _ = do(t, app, "POST", "/refresh")
	assert.Equal(t, 409, code)

	close(release)
	d.Wait()
	code, _ = do(t, app, "POST", "/refresh")
	assert.Equal(t, 429, code)
}

func TestExportEndpoint(t *testing.T) {
	app, _, _ := setup(t, okSource(), false)
	code, _ := do(t, app, "POST", "/export")
	assert.Equal(t, 503, code)

	app, d, up := setup(t, okSource(), true)
	code, _ = do(t, app, "POST", "/export")
	assert.Equal(t, 409, code)

	require.NoError(t, d.Refresh(context.Background()))
	code, body := do(t, app, "POST", "/export")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), "snapshot.json")
	assert.Len(t, up.keys, 2)
}

func TestPrometheusEndpoint(t *testing.T) {
	app, d, _ := setup(t, service.SourceFunc(func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	}), false)
	require.Error(t, d.Refresh(context.Background()))

	code, body := do(t, app, "GET", "/metrics")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `powersense_refreshes_total{result="error"} 1`)
}
