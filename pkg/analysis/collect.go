package analysis

import (
	"math"
	"sort"
	"time"
)

// Tail returns the last limit items of in and whether anything was dropped.
// Order is preserved; callers that care about recency sort first or use
// TailByTime. The limit is validated at startup, so a non-positive value
// here is a programming error and returns the input unchanged.
func Tail[T any](in []T, limit int) ([]T, bool) {
	if limit <= 0 || len(in) <= limit {
		return in, false
	}
	return in[len(in)-limit:], true
}

// TailByTime sorts items ascending by the timestamp ts extracts, then keeps
// the most recent limit of them. Ties keep their original relative order.
func TailByTime[T any](in []T, ts func(T) time.Time, limit int) ([]T, bool) {
	out := make([]T, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return ts(out[i]).Before(ts(out[j]))
	})
	return Tail(out, limit)
}

// SanitizeSeries drops NaN and infinite samples so the trend engine only ever
// sees finite reals. Returns the clean series and the number of samples
// dropped.
func SanitizeSeries(points []TimeSeriesPoint) ([]TimeSeriesPoint, int) {
	clean := make([]TimeSeriesPoint, 0, len(points))
	dropped := 0
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			dropped++
			continue
		}
		clean = append(clean, p)
	}
	return clean, dropped
}
