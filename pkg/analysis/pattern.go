package analysis

import (
	"sort"
	"strings"
)

// classificationRule maps a predicate to a restart category. Rules are
// evaluated in order and the first match wins, so the slice itself encodes
// the priority: an OOM kill stays an OOM kill even inside a crash loop.
type classificationRule struct {
	category string
	matches  func(ev RestartEvent, inCrashLoop bool) bool
}

var classificationRules = []classificationRule{
	{CategoryOOMKill, func(ev RestartEvent, _ bool) bool {
		return reasonContains(ev, "oomkilled", "oom")
	}},
	{CategoryCrashLoop, func(_ RestartEvent, inCrashLoop bool) bool {
		return inCrashLoop
	}},
	{CategoryImagePullError, func(ev RestartEvent, _ bool) bool {
		return reasonContains(ev, "imagepullbackoff", "errimagepull", "imagepull", "invalidimagename")
	}},
	{CategoryLivenessFail, func(ev RestartEvent, _ bool) bool {
		return reasonContains(ev, "liveness", "probe", "unhealthy")
	}},
	{CategoryUnknown, func(RestartEvent, bool) bool { return true }},
}

func reasonContains(ev RestartEvent, signals ...string) bool {
	reason := strings.ToLower(ev.Reason)
	for _, s := range signals {
		if strings.Contains(reason, s) {
			return true
		}
	}
	return false
}

// Classify groups restart events into one RestartPattern per distinct
// (container, category) pair. Events are ordered by (timestamp, container,
// reason) first, so the result does not depend on arrival order and every
// event is counted exactly once.
func Classify(events []RestartEvent, th Thresholds) []RestartPattern {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]RestartEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Container != b.Container {
			return a.Container < b.Container
		}
		return a.Reason < b.Reason
	})

	looping := crashLoopEvents(sorted, th)

	type key struct{ container, category string }
	patterns := make(map[key]*RestartPattern)
	var order []key

	for i, ev := range sorted {
		category := CategoryUnknown
		for _, rule := range classificationRules {
			if rule.matches(ev, looping[i]) {
				category = rule.category
				break
			}
		}

		k := key{ev.Container, category}
		p, ok := patterns[k]
		if !ok {
			p = &RestartPattern{
				Container: ev.Container,
				Category:  category,
				FirstSeen: ev.Timestamp,
				LastSeen:  ev.Timestamp,
			}
			patterns[k] = p
			order = append(order, k)
		}
		p.Count++
		if ev.Timestamp.Before(p.FirstSeen) {
			p.FirstSeen = ev.Timestamp
		}
		if ev.Timestamp.After(p.LastSeen) {
			p.LastSeen = ev.Timestamp
		}
	}

	out := make([]RestartPattern, 0, len(order))
	for _, k := range order {
		p := patterns[k]
		elapsedHours := p.LastSeen.Sub(p.FirstSeen).Hours()
		if elapsedHours < frequencyEpsilon {
			elapsedHours = frequencyEpsilon
		}
		p.FrequencyPerHour = float64(p.Count) / elapsedHours
		out = append(out, *p)
	}

	// Stable output order regardless of map iteration.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Container != out[j].Container {
			return out[i].Container < out[j].Container
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// crashLoopEvents marks, per index into the sorted event slice, whether the
// event belongs to a cluster of CrashLoopCount or more restarts of the same
// container inside a rolling CrashLoopWindow.
func crashLoopEvents(sorted []RestartEvent, th Thresholds) []bool {
	need := th.CrashLoopCount
	if need < 2 {
		need = 2
	}

	byContainer := make(map[string][]int)
	for i, ev := range sorted {
		byContainer[ev.Container] = append(byContainer[ev.Container], i)
	}

	marked := make([]bool, len(sorted))
	for _, idxs := range byContainer {
		for start := 0; start+need-1 < len(idxs); start++ {
			end := start + need - 1
			window := sorted[idxs[end]].Timestamp.Sub(sorted[idxs[start]].Timestamp)
			if window <= th.CrashLoopWindow {
				for _, i := range idxs[start : end+1] {
					marked[i] = true
				}
			}
		}
	}
	return marked
}
