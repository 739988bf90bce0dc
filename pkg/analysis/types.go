// Package analysis turns raw cluster telemetry (time series, restart events,
// readiness signals) into bounded, structured summaries. Every function here
// is a pure computation over already-fetched data: no I/O, no shared state,
// and identical input always produces identical output.
package analysis

import "time"

// TimeSeriesPoint is one sample of a metric. Series handed to this package
// are ordered ascending by timestamp and contain no duplicate timestamps;
// gaps are allowed.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Trend directions.
const (
	DirectionRising  = "rising"
	DirectionFalling = "falling"
	DirectionStable  = "stable"
)

// TrendSummary is the statistical summary of one time series over a window.
// It is immutable once computed.
type TrendSummary struct {
	Label       string  `json:"label"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	StdDev      float64 `json:"stddev"`
	Slope       float64 `json:"slope"`
	Direction   string  `json:"direction"`
	SampleCount int     `json:"sample_count"`
}

// RestartEvent records one container restart observed in the cluster.
type RestartEvent struct {
	Container string    `json:"container"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	ExitCode  *int32    `json:"exit_code,omitempty"`
}

// Restart pattern categories, in classification priority order.
const (
	CategoryOOMKill        = "oom_kill"
	CategoryCrashLoop      = "crash_loop"
	CategoryImagePullError = "image_pull_error"
	CategoryLivenessFail   = "liveness_failure"
	CategoryUnknown        = "unknown"
)

// RestartPattern aggregates the restarts of one container that fell into one
// category, with their frequency over the observed window.
type RestartPattern struct {
	Container        string    `json:"container"`
	Category         string    `json:"category"`
	Count            int       `json:"count"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	FrequencyPerHour float64   `json:"frequency_per_hour"`
}

// Anomaly kinds.
const (
	AnomalyResourceSpike = "resource_spike"
	AnomalyRestartSurge  = "restart_surge"
	AnomalyNeverReady    = "never_ready"
	AnomalyRapidRestart  = "rapid_restart"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnomalyEvent is one detected irregularity in a scope.
type AnomalyEvent struct {
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Detail     string    `json:"detail"`
	ObservedAt time.Time `json:"observed_at"`
}

// ReadinessSignal is the readiness state of one container at observation time.
type ReadinessSignal struct {
	Pod            string    `json:"pod"`
	Container      string    `json:"container"`
	Ready          bool      `json:"ready"`
	LastTransition time.Time `json:"last_transition"`
}

// PeriodComparison diffs the same metric across two disjoint windows.
// DeltaUndefined is set instead of DeltaPct when the baseline mean is zero.
type PeriodComparison struct {
	MetricName     string       `json:"metric_name"`
	PeriodA        TrendSummary `json:"period_a"`
	PeriodB        TrendSummary `json:"period_b"`
	DeltaPct       float64      `json:"delta_pct"`
	DeltaUndefined bool         `json:"delta_undefined,omitempty"`
	Regressed      bool         `json:"regressed"`
}

// Thresholds carries every tunable constant the analysis functions use.
// Callers construct it once from configuration; the defaults are operational
// starting points, not protocol constants.
type Thresholds struct {
	// TrendSensitivity: a series is rising/falling when slope x duration
	// exceeds this fraction of |mean| (absolute fallback when mean is 0).
	TrendSensitivity float64
	// SpikeZScore: samples further than this many stddevs from the mean
	// are resource spikes.
	SpikeZScore float64
	// RestartRateThreshold: patterns above this frequency per hour are
	// restart surges.
	RestartRateThreshold float64
	// RegressionThreshold: period-over-period delta (as a fraction) beyond
	// which a metric counts as regressed, in its worsening direction.
	RegressionThreshold float64
	// CrashLoopWindow / CrashLoopCount: a container restarting
	// CrashLoopCount or more times inside any rolling CrashLoopWindow is
	// crash looping.
	CrashLoopWindow time.Duration
	CrashLoopCount  int
	// RapidRestartWindow: two restarts of one container inside this window
	// are a rapid-restart anomaly.
	RapidRestartWindow time.Duration
	// NeverReadyGrace: containers not ready for longer than this are
	// never-ready anomalies.
	NeverReadyGrace time.Duration
}

// frequencyEpsilon bounds the elapsed-hours divisor so that sub-second
// windows report a finite frequency instead of failing.
const frequencyEpsilon = 1.0 / 3600

// DefaultThresholds returns the operational defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendSensitivity:     0.10,
		SpikeZScore:          3.0,
		RestartRateThreshold: 6.0,
		RegressionThreshold:  0.10,
		CrashLoopWindow:      10 * time.Minute,
		CrashLoopCount:       3,
		RapidRestartWindow:   2 * time.Minute,
		NeverReadyGrace:      5 * time.Minute,
	}
}
