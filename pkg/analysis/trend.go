package analysis

import (
	"math"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// Summarize computes the statistical summary of a non-empty, finite-valued
// series. The slope is a least-squares fit of value against elapsed seconds
// since the first sample; it is used for direction classification and is not
// a calibrated physical rate.
//
// Direction: rising when slope x window duration exceeds
// TrendSensitivity x |mean| (falling for the negative bound), otherwise
// stable. When the mean is exactly zero the sensitivity is applied as an
// absolute bound so a flat-at-zero series with noise stays stable.
func Summarize(points []TimeSeriesPoint, label string, th Thresholds) (*TrendSummary, error) {
	n := len(points)
	if n == 0 {
		return nil, types.NewError(types.KindInsufficientData, "no samples in window %q", label)
	}

	sum := 0.0
	min := points[0].Value
	max := points[0].Value
	for _, p := range points {
		sum += p.Value
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	mean := sum / float64(n)

	// Population standard deviation, 0 for a single sample.
	stddev := 0.0
	if n > 1 {
		ss := 0.0
		for _, p := range points {
			d := p.Value - mean
			ss += d * d
		}
		stddev = math.Sqrt(ss / float64(n))
	}

	slope := 0.0
	direction := DirectionStable
	if n > 1 {
		slope = leastSquaresSlope(points)
		duration := points[n-1].Timestamp.Sub(points[0].Timestamp).Seconds()
		bound := th.TrendSensitivity * math.Abs(mean)
		if bound == 0 {
			bound = th.TrendSensitivity
		}
		switch change := slope * duration; {
		case change > bound:
			direction = DirectionRising
		case change < -bound:
			direction = DirectionFalling
		}
	}

	return &TrendSummary{
		Label:       label,
		Mean:        mean,
		Min:         min,
		Max:         max,
		StdDev:      stddev,
		Slope:       slope,
		Direction:   direction,
		SampleCount: n,
	}, nil
}

// leastSquaresSlope fits value = a + b*t with t in seconds since the first
// sample and returns b. A degenerate time axis (all samples at one instant)
// yields 0.
func leastSquaresSlope(points []TimeSeriesPoint) float64 {
	n := float64(len(points))
	t0 := points[0].Timestamp

	var sumT, sumV, sumTT, sumTV float64
	for _, p := range points {
		t := p.Timestamp.Sub(t0).Seconds()
		sumT += t
		sumV += p.Value
		sumTT += t * t
		sumTV += t * p.Value
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return 0
	}
	return (n*sumTV - sumT*sumV) / denom
}
