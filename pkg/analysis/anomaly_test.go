package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spikeSeries builds a flat series with a known mean and stddev, plus one
// outlier at the end. 100 samples alternating 45/55 give mean 50, stddev 5,
// and a baseline long enough that one outlier cannot drown its own z-score.
func spikeSeries(start time.Time, outlier float64) []TimeSeriesPoint {
	var points []TimeSeriesPoint
	for i := 0; i < 100; i++ {
		v := 45.0
		if i%2 == 1 {
			v = 55.0
		}
		points = append(points, TimeSeriesPoint{Timestamp: start.Add(time.Duration(i) * time.Minute), Value: v})
	}
	points = append(points, TimeSeriesPoint{Timestamp: start.Add(100 * time.Minute), Value: outlier})
	return points
}

func TestDetectResourceSpikes(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// The outlier pulls the series stats slightly, but 80 stays far beyond
	// three stddevs of the mean.
	spikes := DetectResourceSpikes(spikeSeries(start, 80), "memory", DefaultThresholds())
	require.Len(t, spikes, 1)
	assert.Equal(t, AnomalyResourceSpike, spikes[0].Kind)
	assert.Equal(t, start.Add(100*time.Minute), spikes[0].ObservedAt)
}

func TestDetectResourceSpikesSeverityScales(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// A very large outlier lands beyond threshold+2 stddevs: high severity.
	spikes := DetectResourceSpikes(spikeSeries(start, 200), "memory", DefaultThresholds())
	require.Len(t, spikes, 1)
	assert.Equal(t, SeverityHigh, spikes[0].Severity)
}

func TestDetectResourceSpikesFlatSeries(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	flat := seriesAt(start, time.Minute, 50, 50, 50, 50)
	assert.Empty(t, DetectResourceSpikes(flat, "cpu", DefaultThresholds()))
}

func TestDetectRestartSurges(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	patterns := []RestartPattern{
		{Container: "quiet", Category: CategoryUnknown, Count: 2, FrequencyPerHour: 1, LastSeen: now},
		{Container: "busy", Category: CategoryCrashLoop, Count: 8, FrequencyPerHour: 8, LastSeen: now},
		{Container: "frantic", Category: CategoryCrashLoop, Count: 20, FrequencyPerHour: 20, LastSeen: now},
	}

	surges := DetectRestartSurges(patterns, DefaultThresholds())
	require.Len(t, surges, 2)
	assert.Equal(t, SeverityMedium, surges[0].Severity)
	assert.Equal(t, SeverityHigh, surges[1].Severity)
}

func TestDetectRapidRestarts(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("web/app", "Error", start),
		restartAt("web/app", "Error", start.Add(90*time.Second)),
		restartAt("web/other", "Error", start),
		restartAt("web/other", "Error", start.Add(10*time.Minute)),
	}

	anomalies := DetectRapidRestarts(events, DefaultThresholds())
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyRapidRestart, anomalies[0].Kind)
	assert.Contains(t, anomalies[0].Detail, "web/app")
}

func TestDetectRapidRestartsOnePerContainer(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("web/app", "Error", start),
		restartAt("web/app", "Error", start.Add(30*time.Second)),
		restartAt("web/app", "Error", start.Add(time.Minute)),
		restartAt("web/app", "Error", start.Add(90*time.Second)),
	}

	anomalies := DetectRapidRestarts(events, DefaultThresholds())
	require.Len(t, anomalies, 1)
	assert.Equal(t, SeverityHigh, anomalies[0].Severity)
}

func TestDetectNeverReady(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	signals := []ReadinessSignal{
		{Pod: "ok", Container: "app", Ready: true, LastTransition: now.Add(-time.Hour)},
		{Pod: "fresh", Container: "app", Ready: false, LastTransition: now.Add(-2 * time.Minute)},
		{Pod: "stuck", Container: "app", Ready: false, LastTransition: now.Add(-8 * time.Minute)},
		{Pod: "long-stuck", Container: "app", Ready: false, LastTransition: now.Add(-time.Hour)},
	}

	anomalies := DetectNeverReady(signals, now, DefaultThresholds())
	require.Len(t, anomalies, 2)
	assert.Equal(t, SeverityMedium, anomalies[0].Severity)
	assert.Contains(t, anomalies[0].Detail, "stuck")
	assert.Equal(t, SeverityHigh, anomalies[1].Severity)
	assert.Contains(t, anomalies[1].Detail, "long-stuck")
}

func TestDetectReportsMissingFeeds(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := DetectionInput{
		RestartsAvailable:  true,
		ReadinessAvailable: true,
	}

	anomalies, warnings := Detect(in, now, DefaultThresholds())
	assert.Empty(t, anomalies)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "resource usage unavailable")
}

func TestDetectRunsAllDetectors(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-30 * time.Minute)
	in := DetectionInput{
		Usage:          spikeSeries(start, 200),
		UsageLabel:     "memory",
		UsageAvailable: true,
		Restarts: []RestartEvent{
			restartAt("web/app", "Error", start),
			restartAt("web/app", "Error", start.Add(time.Minute)),
		},
		RestartsAvailable: true,
		Readiness: []ReadinessSignal{
			{Pod: "stuck", Container: "app", Ready: false, LastTransition: now.Add(-time.Hour)},
		},
		ReadinessAvailable: true,
	}

	anomalies, warnings := Detect(in, now, DefaultThresholds())
	assert.Empty(t, warnings)

	kinds := map[string]bool{}
	for _, a := range anomalies {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[AnomalyResourceSpike])
	assert.True(t, kinds[AnomalyRapidRestart])
	assert.True(t, kinds[AnomalyNeverReady])
}
