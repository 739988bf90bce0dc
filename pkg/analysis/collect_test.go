package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailUnderLimit(t *testing.T) {
	in := []int{1, 2, 3}
	out, truncated := Tail(in, 5)
	assert.Equal(t, in, out)
	assert.False(t, truncated)
}

func TestTailOverLimit(t *testing.T) {
	in := make([]int, 250)
	for i := range in {
		in[i] = i
	}

	out, truncated := Tail(in, 100)
	require.Len(t, out, 100)
	assert.True(t, truncated)
	// The newest entries survive.
	assert.Equal(t, 150, out[0])
	assert.Equal(t, 249, out[99])
}

func TestTailByTimeKeepsNewest(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := []TimeSeriesPoint{
		{Timestamp: start.Add(3 * time.Minute), Value: 3},
		{Timestamp: start, Value: 0},
		{Timestamp: start.Add(2 * time.Minute), Value: 2},
		{Timestamp: start.Add(time.Minute), Value: 1},
	}

	out, truncated := TailByTime(in, func(p TimeSeriesPoint) time.Time { return p.Timestamp }, 2)
	require.Len(t, out, 2)
	assert.True(t, truncated)
	assert.Equal(t, 2.0, out[0].Value)
	assert.Equal(t, 3.0, out[1].Value)
}

func TestTailByTimeDoesNotMutateInput(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := []TimeSeriesPoint{
		{Timestamp: start.Add(time.Minute), Value: 1},
		{Timestamp: start, Value: 0},
	}

	_, _ = TailByTime(in, func(p TimeSeriesPoint) time.Time { return p.Timestamp }, 1)
	assert.Equal(t, 1.0, in[0].Value)
}

func TestSanitizeSeries(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := []TimeSeriesPoint{
		{Timestamp: start, Value: 1},
		{Timestamp: start.Add(time.Minute), Value: math.NaN()},
		{Timestamp: start.Add(2 * time.Minute), Value: math.Inf(1)},
		{Timestamp: start.Add(3 * time.Minute), Value: math.Inf(-1)},
		{Timestamp: start.Add(4 * time.Minute), Value: 2},
	}

	clean, dropped := SanitizeSeries(in)
	assert.Equal(t, 3, dropped)
	require.Len(t, clean, 2)
	assert.Equal(t, 1.0, clean[0].Value)
	assert.Equal(t, 2.0, clean[1].Value)
}
