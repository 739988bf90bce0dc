package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// --- analyze_restart_patterns ---

type AnalyzeRestartPatternsTool struct{ BaseTool }

func (t *AnalyzeRestartPatternsTool) Name() string { return "analyze_restart_patterns" }
func (t *AnalyzeRestartPatternsTool) Description() string {
	return "Classify container restarts into failure categories with per-container frequency"
}
func (t *AnalyzeRestartPatternsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Restrict to one deployment's pods (optional)"},
			"lookback":        map[string]interface{}{"type": "string", "description": "Lookback window, e.g. 1h, 24h (default 1h)"},
		},
		"required": []string{"namespace"},
	}
}

func (t *AnalyzeRestartPatternsTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		deployment := getStringArg(args, "deployment_name", "")
		window, err := getWindowArg(args, "lookback", "1h")
		if err != nil {
			return nil, err
		}

		pods, err := t.podsForScope(ctx, ns, deployment)
		if err != nil {
			return nil, err
		}

		events := restartEventsFromPods(pods, time.Now().Add(-window))
		kept, truncated := analysis.TailByTime(events, func(ev analysis.RestartEvent) time.Time {
			return ev.Timestamp
		}, t.Cfg.MaxEvents)

		patterns := analysis.Classify(kept, t.Cfg.Thresholds())

		totalRestarts := int32(0)
		for _, pod := range pods {
			for _, cs := range pod.Status.ContainerStatuses {
				totalRestarts += cs.RestartCount
			}
		}

		var warnings []string
		if truncated {
			warnings = append(warnings, fmt.Sprintf("restart events truncated to the newest %d of %d", len(kept), len(events)))
		}

		return &Outcome{
			Result: map[string]interface{}{
				"patterns":          patterns,
				"event_count":       len(kept),
				"lifetime_restarts": totalRestarts,
				"assessment":        assessRestartPatterns(patterns, t.Cfg.RestartRateThreshold),
				"recommendations":   recommendForPatterns(patterns),
				"namespace":         ns,
				"lookback":          window.String(),
			},
			Warnings:          warnings,
			Truncated:         truncated,
			CollaboratorCalls: 1,
		}, nil
	}), nil
}

func (t *AnalyzeRestartPatternsTool) podsForScope(ctx context.Context, ns, deployment string) ([]corev1.Pod, error) {
	if deployment != "" {
		return t.Clients.PodsForDeployment(ctx, ns, deployment)
	}
	return t.Clients.ListPods(ctx, ns, "")
}

// assessRestartPatterns grades the worst observed pattern.
func assessRestartPatterns(patterns []analysis.RestartPattern, rateThreshold float64) string {
	if len(patterns) == 0 {
		return "healthy"
	}
	worst := "low"
	for _, p := range patterns {
		switch {
		case p.Category == analysis.CategoryOOMKill || p.FrequencyPerHour > 2*rateThreshold:
			return "critical"
		case p.Category == analysis.CategoryCrashLoop || p.FrequencyPerHour > rateThreshold:
			worst = "high"
		case worst == "low" && p.FrequencyPerHour > rateThreshold/2:
			worst = "medium"
		}
	}
	return worst
}

func recommendForPatterns(patterns []analysis.RestartPattern) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, p := range patterns {
		switch p.Category {
		case analysis.CategoryOOMKill:
			add("raise memory limits or investigate a memory leak (OOM kills observed)")
		case analysis.CategoryCrashLoop:
			add("inspect container logs for the crash loop root cause")
		case analysis.CategoryImagePullError:
			add("verify image name, tag and registry credentials")
		case analysis.CategoryLivenessFail:
			add("review liveness probe thresholds and application startup time")
		default:
			add("inspect recent logs and events for the unclassified restarts")
		}
	}
	return out
}

// --- get_deployment_history ---

// RolloutRecord is one revision in a deployment's rollout history.
type RolloutRecord struct {
	Revision  int64     `json:"revision"`
	Images    []string  `json:"images"`
	Replicas  int32     `json:"replicas"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

type GetDeploymentHistoryTool struct{ BaseTool }

func (t *GetDeploymentHistoryTool) Name() string { return "get_deployment_history" }
func (t *GetDeploymentHistoryTool) Description() string {
	return "Get a deployment's rollout history: revisions, images and rollout conditions"
}
func (t *GetDeploymentHistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Deployment to inspect"},
			"lookback":        map[string]interface{}{"type": "string", "description": "Only revisions newer than this, e.g. 7d (default 7d)"},
		},
		"required": []string{"namespace", "deployment_name"},
	}
}

func (t *GetDeploymentHistoryTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		name, err := requireStringArg(args, "deployment_name")
		if err != nil {
			return nil, err
		}
		window, err := getWindowArg(args, "lookback", "7d")
		if err != nil {
			return nil, err
		}

		dep, err := t.Clients.GetDeployment(ctx, ns, name)
		if err != nil {
			return nil, err
		}
		selector := labelSelectorString(dep)
		replicaSets, err := t.Clients.ListReplicaSets(ctx, ns, selector)
		if err != nil {
			return nil, err
		}

		since := time.Now().Add(-window)
		records := make([]RolloutRecord, 0, len(replicaSets))
		for _, rs := range replicaSets {
			if rs.CreationTimestamp.Time.Before(since) {
				continue
			}
			images := make([]string, 0, len(rs.Spec.Template.Spec.Containers))
			for _, c := range rs.Spec.Template.Spec.Containers {
				images = append(images, c.Image)
			}
			records = append(records, RolloutRecord{
				Revision:  revisionOf(&rs),
				Images:    images,
				Replicas:  rs.Status.Replicas,
				CreatedAt: rs.CreationTimestamp.Time,
				Active:    rs.Status.Replicas > 0,
			})
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Revision > records[j].Revision })

		conditions := make([]map[string]string, 0, len(dep.Status.Conditions))
		for _, cond := range dep.Status.Conditions {
			conditions = append(conditions, map[string]string{
				"type":    string(cond.Type),
				"status":  string(cond.Status),
				"reason":  cond.Reason,
				"message": cond.Message,
			})
		}

		return &Outcome{
			Result: map[string]interface{}{
				"deployment": name,
				"namespace":  ns,
				"revisions":  records,
				"conditions": conditions,
				"lookback":   window.String(),
			},
			CollaboratorCalls: 2,
		}, nil
	}), nil
}

func labelSelectorString(dep *appsv1.Deployment) string {
	if dep.Spec.Selector == nil {
		return ""
	}
	parts := make([]string, 0, len(dep.Spec.Selector.MatchLabels))
	for _, k := range sortedKeys(dep.Spec.Selector.MatchLabels) {
		parts = append(parts, k+"="+dep.Spec.Selector.MatchLabels[k])
	}
	sel := ""
	for i, p := range parts {
		if i > 0 {
			sel += ","
		}
		sel += p
	}
	return sel
}

func revisionOf(rs *appsv1.ReplicaSet) int64 {
	raw, ok := rs.Annotations["deployment.kubernetes.io/revision"]
	if !ok {
		return 0
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return rev
}

// --- compare_period_metrics ---

type ComparePeriodMetricsTool struct{ BaseTool }

func (t *ComparePeriodMetricsTool) Name() string { return "compare_period_metrics" }
func (t *ComparePeriodMetricsTool) Description() string {
	return "Compare a metric's mean across two time periods and flag regressions"
}
func (t *ComparePeriodMetricsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Restrict to one deployment's pods (optional)"},
			"metric":          map[string]interface{}{"type": "string", "description": "One of: cpu, memory, network_receive, network_transmit, restart_total"},
			"baseline_period": map[string]interface{}{"type": "string", "description": "Baseline: last_week, last_month, or a window like 24h (default last_week)"},
			"compare_period":  map[string]interface{}{"type": "string", "description": "Comparison: this_week, this_month, or a window like 24h (default this_week)"},
		},
		"required": []string{"namespace", "metric"},
	}
}

func (t *ComparePeriodMetricsTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		metricName, err := requireStringArg(args, "metric")
		if err != nil {
			return nil, err
		}
		spec, err := lookupMetric(metricName)
		if err != nil {
			return nil, err
		}
		deployment := getStringArg(args, "deployment_name", "")

		now := time.Now()
		baseStart, baseEnd, err := parsePeriod(getStringArg(args, "baseline_period", "last_week"), now)
		if err != nil {
			return nil, err
		}
		cmpStart, cmpEnd, err := parsePeriod(getStringArg(args, "compare_period", "this_week"), now)
		if err != nil {
			return nil, err
		}

		query := spec.query(deploymentSelector(ns, deployment))
		periods := map[string][2]time.Time{
			"baseline": {baseStart, baseEnd},
			"compare":  {cmpStart, cmpEnd},
		}
		results, errs := fanOut(ctx, sortedKeys(periods), t.Cfg.MaxConcurrentFetches,
			func(ctx context.Context, key string) ([]analysis.TimeSeriesPoint, error) {
				bounds := periods[key]
				points, _, err := t.Prom.FirstSeriesPoints(ctx, query, bounds[0], bounds[1])
				return points, err
			})
		if keys := sortedKeys(errs); len(keys) > 0 {
			return nil, errs[keys[0]]
		}

		comparison, err := analysis.ComparePeriods(metricName, spec.higherIsWorse,
			results["baseline"], results["compare"], t.Cfg.Thresholds())
		if err != nil {
			return nil, err
		}

		var warnings []string
		if comparison.DeltaUndefined {
			warnings = append(warnings, "baseline mean is zero, relative delta is undefined")
		}

		return &Outcome{
			Result: map[string]interface{}{
				"comparison":     comparison,
				"unit":           spec.unit,
				"baseline_start": baseStart,
				"baseline_end":   baseEnd,
				"compare_start":  cmpStart,
				"compare_end":    cmpEnd,
				"namespace":      ns,
			},
			Warnings:          warnings,
			CollaboratorCalls: 2,
		}, nil
	}), nil
}

// parsePeriod resolves a period name to absolute bounds. Weeks start on
// Monday. A plain duration means "the window ending now".
func parsePeriod(name string, now time.Time) (time.Time, time.Time, error) {
	switch name {
	case "this_week":
		return startOfWeek(now), now, nil
	case "last_week":
		end := startOfWeek(now)
		return end.AddDate(0, 0, -7), end, nil
	case "this_month":
		return startOfMonth(now), now, nil
	case "last_month":
		end := startOfMonth(now)
		return end.AddDate(0, -1, 0), end, nil
	}
	window, err := parseWindow(name)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewError(types.KindInvalidInput,
			"invalid period %q (use this_week, last_week, this_month, last_month or a window like 24h)", name)
	}
	return now.Add(-window), now, nil
}

func startOfWeek(t time.Time) time.Time {
	t = startOfDay(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// --- get_anomaly_report ---

type GetAnomalyReportTool struct{ BaseTool }

func (t *GetAnomalyReportTool) Name() string { return "get_anomaly_report" }
func (t *GetAnomalyReportTool) Description() string {
	return "Detect anomalies across resource usage, restarts and readiness in one report"
}
func (t *GetAnomalyReportTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{"type": "string", "description": "Kubernetes namespace (empty for all namespaces)"},
			"lookback":  map[string]interface{}{"type": "string", "description": "Lookback window, e.g. 1h, 6h (default 1h)"},
		},
	}
}

func (t *GetAnomalyReportTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns := getStringArg(args, "namespace", "")
		window, err := getWindowArg(args, "lookback", "1h")
		if err != nil {
			return nil, err
		}
		now := time.Now()

		pods, err := t.Clients.ListPods(ctx, ns, "")
		if err != nil {
			return nil, err
		}
		calls := 1

		in := analysis.DetectionInput{
			Restarts:           restartEventsFromPods(pods, now.Add(-window)),
			RestartsAvailable:  true,
			Readiness:          readinessSignals(pods),
			ReadinessAvailable: true,
			UsageLabel:         "memory",
		}

		var degraded []string
		if t.Prom != nil {
			sel := deploymentSelector(ns, "")
			if ns == "" {
				sel = `namespace!=""`
			}
			query := metricCatalog["memory"].query(sel)
			points, _, err := t.Prom.FirstSeriesPoints(ctx, query, now.Add(-window), now)
			calls++
			if err != nil {
				degraded = append(degraded, fmt.Sprintf("resource usage unavailable: %s", errorMessage(err)))
			} else {
				in.Usage = points
				in.UsageAvailable = true
			}
		} else {
			degraded = append(degraded, "metrics source not configured, spike detection skipped")
		}

		anomalies, feedWarnings := analysis.Detect(in, now, t.Cfg.Thresholds())

		bySeverity := map[string]int{}
		byKind := map[string]int{}
		for _, a := range anomalies {
			bySeverity[a.Severity]++
			byKind[a.Kind]++
		}

		return &Outcome{
			Result: map[string]interface{}{
				"anomalies":   anomalies,
				"total_count": len(anomalies),
				"by_severity": bySeverity,
				"by_kind":     byKind,
				"namespace":   namespaceLabel(ns),
				"lookback":    window.String(),
			},
			Warnings:          feedWarnings,
			Degraded:          degraded,
			CollaboratorCalls: calls,
		}, nil
	}), nil
}

// readinessSignals extracts one signal per container, anchored at the pod's
// ready-condition transition when present and the pod start time otherwise.
func readinessSignals(pods []corev1.Pod) []analysis.ReadinessSignal {
	var out []analysis.ReadinessSignal
	for _, pod := range pods {
		if pod.Status.Phase == corev1.PodSucceeded {
			continue
		}
		transition := time.Time{}
		if pod.Status.StartTime != nil {
			transition = pod.Status.StartTime.Time
		}
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady && !cond.LastTransitionTime.IsZero() {
				transition = cond.LastTransitionTime.Time
			}
		}
		for _, cs := range pod.Status.ContainerStatuses {
			out = append(out, analysis.ReadinessSignal{
				Pod:            pod.Name,
				Container:      cs.Name,
				Ready:          cs.Ready,
				LastTransition: transition,
			})
		}
	}
	return out
}
