package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
)

type Config struct {
	ClusterName string
	Port        int
	LogLevel    string
	Namespace   string

	PrometheusURL         string
	PrometheusBearerToken string

	// Output caps. Enforced before analysis so both memory and response
	// size stay bounded; zero or negative values fail Load().
	MaxLogLines     int
	MaxEvents       int
	MaxSeriesPoints int

	// Aggregate collaborator-call budget per tool invocation.
	ToolTimeout time.Duration

	// Analysis tunables.
	TrendSensitivity     float64
	SpikeZScore          float64
	RestartRateThreshold float64
	RegressionThreshold  float64
	CrashLoopWindow      time.Duration
	RapidRestartWindow   time.Duration
	NeverReadyGrace      time.Duration

	MaxConcurrentFetches int
}

func Load() (*Config, error) {
	clusterName := os.Getenv("CLUSTER_NAME")
	if clusterName == "" {
		return nil, fmt.Errorf("CLUSTER_NAME environment variable is required")
	}

	defaults := analysis.DefaultThresholds()
	cfg := &Config{
		ClusterName:           clusterName,
		Port:                  envInt("PORT", 8080),
		LogLevel:              envString("LOG_LEVEL", "info"),
		Namespace:             os.Getenv("NAMESPACE"),
		PrometheusURL:         envString("PROMETHEUS_URL", "http://kube-prometheus-stack-prometheus.monitoring:9090"),
		PrometheusBearerToken: os.Getenv("PROMETHEUS_BEARER_TOKEN"),
		MaxLogLines:           envInt("MAX_LOG_LINES", 100),
		MaxEvents:             envInt("MAX_EVENTS", 50),
		MaxSeriesPoints:       envInt("MAX_TIMESERIES_POINTS", 100),
		ToolTimeout:           envDuration("TOOL_TIMEOUT", 30*time.Second),
		TrendSensitivity:      envFloat("TREND_SENSITIVITY", defaults.TrendSensitivity),
		SpikeZScore:           envFloat("SPIKE_ZSCORE", defaults.SpikeZScore),
		RestartRateThreshold:  envFloat("RESTART_RATE_THRESHOLD", defaults.RestartRateThreshold),
		RegressionThreshold:   envFloat("REGRESSION_THRESHOLD", defaults.RegressionThreshold),
		CrashLoopWindow:       envDuration("CRASH_LOOP_WINDOW", defaults.CrashLoopWindow),
		RapidRestartWindow:    envDuration("RAPID_RESTART_WINDOW", defaults.RapidRestartWindow),
		NeverReadyGrace:       envDuration("NEVER_READY_GRACE", defaults.NeverReadyGrace),
		MaxConcurrentFetches:  envInt("MAX_CONCURRENT_FETCHES", 5),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects misconfiguration once at startup so the per-call path
// never has to re-check caps.
func (c *Config) validate() error {
	caps := map[string]int{
		"MAX_LOG_LINES":          c.MaxLogLines,
		"MAX_EVENTS":             c.MaxEvents,
		"MAX_TIMESERIES_POINTS":  c.MaxSeriesPoints,
		"MAX_CONCURRENT_FETCHES": c.MaxConcurrentFetches,
	}
	for name, v := range caps {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be positive, got %s", c.ToolTimeout)
	}
	if c.SpikeZScore <= 0 {
		return fmt.Errorf("SPIKE_ZSCORE must be positive, got %g", c.SpikeZScore)
	}
	if c.TrendSensitivity <= 0 {
		return fmt.Errorf("TREND_SENSITIVITY must be positive, got %g", c.TrendSensitivity)
	}
	if c.RestartRateThreshold <= 0 {
		return fmt.Errorf("RESTART_RATE_THRESHOLD must be positive, got %g", c.RestartRateThreshold)
	}
	if c.RegressionThreshold <= 0 {
		return fmt.Errorf("REGRESSION_THRESHOLD must be positive, got %g", c.RegressionThreshold)
	}
	if c.CrashLoopWindow <= 0 || c.RapidRestartWindow <= 0 || c.NeverReadyGrace <= 0 {
		return fmt.Errorf("analysis windows must be positive durations")
	}
	return nil
}

// Thresholds bundles the analysis tunables for the pure computation layer.
func (c *Config) Thresholds() analysis.Thresholds {
	th := analysis.DefaultThresholds()
	th.TrendSensitivity = c.TrendSensitivity
	th.SpikeZScore = c.SpikeZScore
	th.RestartRateThreshold = c.RestartRateThreshold
	th.RegressionThreshold = c.RegressionThreshold
	th.CrashLoopWindow = c.CrashLoopWindow
	th.RapidRestartWindow = c.RapidRestartWindow
	th.NeverReadyGrace = c.NeverReadyGrace
	return th
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// SetupLogging initializes the global slog logger with JSON output at the
// specified level.
func SetupLogging(level string) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}
