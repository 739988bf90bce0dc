package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restartAt(container, reason string, at time.Time) RestartEvent {
	return RestartEvent{Container: container, Reason: reason, Timestamp: at}
}

func TestClassifyEmpty(t *testing.T) {
	assert.Nil(t, Classify(nil, DefaultThresholds()))
}

func TestClassifyOOMKill(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("web/app", "OOMKilled", start),
		restartAt("web/app", "OOMKilled", start.Add(10*time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.Equal(t, CategoryOOMKill, patterns[0].Category)
	assert.Equal(t, 2, patterns[0].Count)
}

func TestClassifyOOMFrequency(t *testing.T) {
	// 5 OOM kills across 40 minutes is 7.5 per hour.
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var events []RestartEvent
	for i := 0; i < 5; i++ {
		events = append(events, restartAt("web/app", "OOMKilled", start.Add(time.Duration(i)*10*time.Minute)))
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.Equal(t, 5, patterns[0].Count)
	assert.InDelta(t, 7.5, patterns[0].FrequencyPerHour, 1e-9)
}

func TestClassifyCrashLoopWindow(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Three restarts inside ten minutes: a crash loop.
	events := []RestartEvent{
		restartAt("web/app", "Error", start),
		restartAt("web/app", "Error", start.Add(3*time.Minute)),
		restartAt("web/app", "Error", start.Add(8*time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.Equal(t, CategoryCrashLoop, patterns[0].Category)
	assert.Equal(t, 3, patterns[0].Count)
}

func TestClassifySlowRestartsAreNotCrashLoop(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Three restarts spread over an hour never fit in the rolling window.
	events := []RestartEvent{
		restartAt("web/app", "Error", start),
		restartAt("web/app", "Error", start.Add(25*time.Minute)),
		restartAt("web/app", "Error", start.Add(55*time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.Equal(t, CategoryUnknown, patterns[0].Category)
}

func TestClassifyOOMWinsInsideCrashLoop(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// A tight cluster of restarts where every event is an OOM kill: the
	// higher-priority rule takes them all.
	events := []RestartEvent{
		restartAt("web/app", "OOMKilled", start),
		restartAt("web/app", "OOMKilled", start.Add(time.Minute)),
		restartAt("web/app", "OOMKilled", start.Add(2*time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.Equal(t, CategoryOOMKill, patterns[0].Category)
}

func TestClassifyImagePullAndLiveness(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("web/app", "ImagePullBackOff", start),
		restartAt("web/sidecar", "Unhealthy: liveness probe failed", start.Add(time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 2)
	assert.Equal(t, CategoryImagePullError, patterns[0].Category)
	assert.Equal(t, "web/app", patterns[0].Container)
	assert.Equal(t, CategoryLivenessFail, patterns[1].Category)
	assert.Equal(t, "web/sidecar", patterns[1].Container)
}

func TestClassifyCountsEveryEventExactlyOnce(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("a/main", "OOMKilled", start),
		restartAt("a/main", "Error", start.Add(time.Minute)),
		restartAt("a/main", "Error", start.Add(2*time.Minute)),
		restartAt("a/main", "Error", start.Add(3*time.Minute)),
		restartAt("b/main", "ImagePullBackOff", start.Add(4*time.Minute)),
		restartAt("b/main", "something odd", start.Add(40*time.Minute)),
	}

	patterns := Classify(events, DefaultThresholds())
	total := 0
	for _, p := range patterns {
		total += p.Count
	}
	assert.Equal(t, len(events), total)
}

func TestClassifyOrderIndependence(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []RestartEvent{
		restartAt("b/main", "Error", start.Add(2*time.Minute)),
		restartAt("a/main", "OOMKilled", start),
		restartAt("a/main", "OOMKilled", start.Add(time.Minute)),
	}
	reversed := []RestartEvent{events[2], events[1], events[0]}

	assert.Equal(t, Classify(events, DefaultThresholds()), Classify(reversed, DefaultThresholds()))
}

func TestClassifyInstantaneousBurst(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// All events at the same instant: frequency must stay finite.
	events := []RestartEvent{
		restartAt("web/app", "OOMKilled", at),
		restartAt("web/app", "OOMKilled", at),
	}

	patterns := Classify(events, DefaultThresholds())
	require.Len(t, patterns, 1)
	assert.InDelta(t, 7200, patterns[0].FrequencyPerHour, 1e-6)
}
