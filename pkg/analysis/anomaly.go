package analysis

import (
	"fmt"
	"sort"
	"time"
)

// DetectionInput carries the three telemetry feeds anomaly detection works
// over. The *Available flags let callers report which feeds they actually
// obtained; detection runs on whatever is present and the missing feeds come
// back as degradation warnings.
type DetectionInput struct {
	Usage          []TimeSeriesPoint
	UsageLabel     string
	UsageAvailable bool

	Restarts          []RestartEvent
	RestartsAvailable bool

	Readiness          []ReadinessSignal
	ReadinessAvailable bool
}

// Detect runs all four detectors over the available feeds and returns the
// anomalies plus one warning per missing feed. now anchors the never-ready
// grace computation so results are reproducible in tests.
func Detect(in DetectionInput, now time.Time, th Thresholds) ([]AnomalyEvent, []string) {
	var anomalies []AnomalyEvent
	var warnings []string

	if in.UsageAvailable {
		anomalies = append(anomalies, DetectResourceSpikes(in.Usage, in.UsageLabel, th)...)
	} else {
		warnings = append(warnings, "resource usage unavailable, spike detection skipped")
	}

	if in.RestartsAvailable {
		patterns := Classify(in.Restarts, th)
		anomalies = append(anomalies, DetectRestartSurges(patterns, th)...)
		anomalies = append(anomalies, DetectRapidRestarts(in.Restarts, th)...)
	} else {
		warnings = append(warnings, "restart events unavailable, restart detection skipped")
	}

	if in.ReadinessAvailable {
		anomalies = append(anomalies, DetectNeverReady(in.Readiness, now, th)...)
	} else {
		warnings = append(warnings, "readiness signals unavailable, never-ready detection skipped")
	}

	return anomalies, warnings
}

// DetectResourceSpikes flags samples whose z-score against the series' own
// mean exceeds SpikeZScore. Severity scales with the multiple: low below
// SpikeZScore+1, medium below SpikeZScore+2, high beyond that.
func DetectResourceSpikes(points []TimeSeriesPoint, label string, th Thresholds) []AnomalyEvent {
	summary, err := Summarize(points, label, th)
	if err != nil || summary.StdDev == 0 {
		return nil
	}

	var out []AnomalyEvent
	for _, p := range points {
		z := (p.Value - summary.Mean) / summary.StdDev
		abs := z
		if abs < 0 {
			abs = -abs
		}
		if abs <= th.SpikeZScore {
			continue
		}
		out = append(out, AnomalyEvent{
			Kind:     AnomalyResourceSpike,
			Severity: spikeSeverity(abs, th.SpikeZScore),
			Detail: fmt.Sprintf("%s sample %.4g deviates %.1f stddevs from mean %.4g",
				label, p.Value, abs, summary.Mean),
			ObservedAt: p.Timestamp,
		})
	}
	return out
}

func spikeSeverity(zscore, threshold float64) string {
	switch {
	case zscore >= threshold+2:
		return SeverityHigh
	case zscore >= threshold+1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DetectRestartSurges flags patterns whose restart frequency exceeds the
// configured rate threshold.
func DetectRestartSurges(patterns []RestartPattern, th Thresholds) []AnomalyEvent {
	var out []AnomalyEvent
	for _, p := range patterns {
		if p.FrequencyPerHour <= th.RestartRateThreshold {
			continue
		}
		severity := SeverityMedium
		if p.FrequencyPerHour > 2*th.RestartRateThreshold {
			severity = SeverityHigh
		}
		out = append(out, AnomalyEvent{
			Kind:     AnomalyRestartSurge,
			Severity: severity,
			Detail: fmt.Sprintf("container %s restarting %.1f times/hour (%s, threshold %.1f)",
				p.Container, p.FrequencyPerHour, p.Category, th.RestartRateThreshold),
			ObservedAt: p.LastSeen,
		})
	}
	return out
}

// DetectRapidRestarts flags containers that restarted twice or more inside
// RapidRestartWindow. This is independent of crash-loop classification: a
// single tight pair qualifies even below the crash-loop count. One anomaly
// is emitted per container, anchored at its first qualifying restart pair.
func DetectRapidRestarts(events []RestartEvent, th Thresholds) []AnomalyEvent {
	byContainer := make(map[string][]time.Time)
	for _, ev := range events {
		byContainer[ev.Container] = append(byContainer[ev.Container], ev.Timestamp)
	}

	containers := make([]string, 0, len(byContainer))
	for c := range byContainer {
		containers = append(containers, c)
	}
	sort.Strings(containers)

	var out []AnomalyEvent
	for _, c := range containers {
		times := byContainer[c]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		for i := 1; i < len(times); i++ {
			gap := times[i].Sub(times[i-1])
			if gap > th.RapidRestartWindow {
				continue
			}
			severity := SeverityMedium
			if gap <= th.RapidRestartWindow/2 {
				severity = SeverityHigh
			}
			out = append(out, AnomalyEvent{
				Kind:     AnomalyRapidRestart,
				Severity: severity,
				Detail: fmt.Sprintf("container %s restarted twice within %s",
					c, gap.Round(time.Second)),
				ObservedAt: times[i],
			})
			break
		}
	}
	return out
}

// DetectNeverReady flags containers that have stayed not-ready past the
// grace period as of now.
func DetectNeverReady(signals []ReadinessSignal, now time.Time, th Thresholds) []AnomalyEvent {
	var out []AnomalyEvent
	for _, s := range signals {
		if s.Ready {
			continue
		}
		notReadyFor := now.Sub(s.LastTransition)
		if notReadyFor <= th.NeverReadyGrace {
			continue
		}
		severity := SeverityMedium
		if notReadyFor > 2*th.NeverReadyGrace {
			severity = SeverityHigh
		}
		out = append(out, AnomalyEvent{
			Kind:     AnomalyNeverReady,
			Severity: severity,
			Detail: fmt.Sprintf("container %s in pod %s not ready for %s (grace %s)",
				s.Container, s.Pod, notReadyFor.Round(time.Second), th.NeverReadyGrace),
			ObservedAt: now,
		})
	}
	return out
}
