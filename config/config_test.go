package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClampPollInterval(t *testing.T) {
	require.Equal(t, time.Second, ClampPollInterval(0))
	require.Equal(t, time.Second, ClampPollInterval(200*time.Millisecond))
	require.Equal(t, 1500*time.Millisecond, ClampPollInterval(1500*time.Millisecond))
	require.Equal(t, 2*time.Second, ClampPollInterval(time.Minute))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://screener.internal:9000/")
	t.Setenv("POLL_INTERVAL_MS", "1200")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test ,")

	cfg := Load()

	require.Equal(t, "http://screener.internal:9000", cfg.Backend.URL)
	require.Equal(t, 1200*time.Millisecond, cfg.Backend.PollInterval)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSList)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
}
