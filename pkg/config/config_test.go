package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresClusterName(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLUSTER_NAME")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-cluster", cfg.ClusterName)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.MaxLogLines)
	assert.Equal(t, 50, cfg.MaxEvents)
	assert.Equal(t, 100, cfg.MaxSeriesPoints)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, 5, cfg.MaxConcurrentFetches)
	assert.InDelta(t, 0.10, cfg.TrendSensitivity, 1e-9)
	assert.InDelta(t, 3.0, cfg.SpikeZScore, 1e-9)
	assert.InDelta(t, 6.0, cfg.RestartRateThreshold, 1e-9)
	assert.InDelta(t, 0.10, cfg.RegressionThreshold, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.CrashLoopWindow)
	assert.Equal(t, 2*time.Minute, cfg.RapidRestartWindow)
	assert.Equal(t, 5*time.Minute, cfg.NeverReadyGrace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_LOG_LINES", "25")
	t.Setenv("TOOL_TIMEOUT", "10s")
	t.Setenv("SPIKE_ZSCORE", "2.5")
	t.Setenv("PROMETHEUS_URL", "http://prom.example:9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 25, cfg.MaxLogLines)
	assert.Equal(t, 10*time.Second, cfg.ToolTimeout)
	assert.InDelta(t, 2.5, cfg.SpikeZScore, 1e-9)
	assert.Equal(t, "http://prom.example:9090", cfg.PrometheusURL)
}

func TestLoadRejectsNonPositiveCaps(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")
	t.Setenv("MAX_EVENTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_EVENTS")
}

func TestLoadRejectsNegativeThreshold(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")
	t.Setenv("RESTART_RATE_THRESHOLD", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESTART_RATE_THRESHOLD")
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestThresholdsBundle(t *testing.T) {
	t.Setenv("CLUSTER_NAME", "test-cluster")
	t.Setenv("SPIKE_ZSCORE", "4.0")
	t.Setenv("CRASH_LOOP_WINDOW", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	th := cfg.Thresholds()
	assert.InDelta(t, 4.0, th.SpikeZScore, 1e-9)
	assert.Equal(t, 5*time.Minute, th.CrashLoopWindow)
	assert.Equal(t, 3, th.CrashLoopCount)
}
