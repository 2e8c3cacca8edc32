package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/config"
)

func upstream(t *testing.T, calls *atomic.Int32) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metrics":{"mae":1.5}}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func load(t *testing.T) {
	t.Helper()
	viper.Reset()
	require.NoError(t, config.Load(filepath.Join(t.TempDir(), "missing.env")))
}

func TestNewWiresChartsToDashboard(t *testing.T) {
	var calls atomic.Int32
	t.Setenv("UPSTREAM_URL", upstream(t, &calls))
	load(t)

	a, err := New(context.Background())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Exporter)

	require.NoError(t, a.Dashboard.Refresh(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, len(charts.Surfaces), a.Charts.Stats().Live)
	assert.Equal(t, charts.Mounted, a.Charts.State(charts.SurfaceHourly))
}

func TestNewWithPayloadCache(t *testing.T) {
	var calls atomic.Int32
	mr := miniredis.RunT(t)
	t.Setenv("UPSTREAM_URL", upstream(t, &calls))
	t.Setenv("PAYLOAD_CACHE_TTL", "1m")
	t.Setenv("REDIS_ADDR", mr.Addr())
	load(t)

	a, err := New(context.Background())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Dashboard.Refresh(ctx))
	require.NoError(t, a.Dashboard.Refresh(ctx))
	assert.Equal(t, int32(1), calls.Load(), "second refresh is served from redis")

	require.NoError(t, a.cache.Invalidate(ctx))
	require.NoError(t, a.Dashboard.Refresh(ctx))
	assert.Equal(t, int32(2), calls.Load())
}
