package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, SourceHTTP, UpstreamSource())
	assert.Equal(t, "http://localhost:5000/routes/ml/charts", UpstreamURL())
	assert.Equal(t, 10*time.Second, UpstreamTimeout())
	assert.Equal(t, 5*time.Minute, RefreshInterval())
	assert.Equal(t, time.Duration(0), PayloadCacheTTL())
	assert.Equal(t, 5.0, Thresholds().Low)
	assert.Equal(t, 15.0, Thresholds().High)
	assert.Equal(t, "ml/models/updated", MQTTRefreshTopic())
	assert.False(t, UseCloudServices())
	assert.Equal(t, zerolog.InfoLevel, LogLevel())
}

func TestLoadFromEnvAndDotenv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("PAYLOAD_S3_KEY=from-dotenv.json\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PAYLOAD_S3_KEY") })

	t.Setenv("UPSTREAM_SOURCE", "Postgres")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("PAYLOAD_CACHE_TTL", "1m")
	t.Setenv("DEVIATION_HIGH_PCT", "20")
	t.Setenv("USE_CLOUD_SERVICES", "true")
	t.Setenv("LOG_LEVEL", "debug")

	require.NoError(t, Load(env))

	assert.Equal(t, SourcePostgres, UpstreamSource())
	assert.Equal(t, 30*time.Second, RefreshInterval())
	assert.Equal(t, time.Minute, PayloadCacheTTL())
	assert.Equal(t, 20.0, Thresholds().High)
	assert.True(t, UseCloudServices())
	assert.Equal(t, zerolog.DebugLevel, LogLevel())
	assert.Equal(t, "from-dotenv.json", PayloadS3Key())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"UPSTREAM_SOURCE":   "ftp",
		"DEVIATION_LOW_PCT": "30",
		"REFRESH_INTERVAL":  "0s",
		"LOG_LEVEL":         "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			viper.Reset()
			t.Setenv(key, value)
			assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.env")))
		})
	}
}
