package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
	"github.com/isitobservable/k8s-observer-mcp/pkg/prom"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// metricSpec describes one canned metric the analysis tools understand.
// higherIsWorse drives the regression direction when two periods are
// compared.
type metricSpec struct {
	unit          string
	higherIsWorse bool
	query         func(selector string) string
}

var metricCatalog = map[string]metricSpec{
	"cpu": {
		unit:          "cores",
		higherIsWorse: true,
		query: func(sel string) string {
			return fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{%s, container!=""}[5m]))`, sel)
		},
	},
	"memory": {
		unit:          "bytes",
		higherIsWorse: true,
		query: func(sel string) string {
			return fmt.Sprintf(`sum(container_memory_working_set_bytes{%s, container!=""})`, sel)
		},
	},
	"network_receive": {
		unit:          "bytes/s",
		higherIsWorse: false,
		query: func(sel string) string {
			return fmt.Sprintf(`sum(rate(container_network_receive_bytes_total{%s}[5m]))`, sel)
		},
	},
	"network_transmit": {
		unit:          "bytes/s",
		higherIsWorse: false,
		query: func(sel string) string {
			return fmt.Sprintf(`sum(rate(container_network_transmit_bytes_total{%s}[5m]))`, sel)
		},
	},
	"restart_total": {
		unit:          "restarts",
		higherIsWorse: true,
		query: func(sel string) string {
			return fmt.Sprintf(`sum(kube_pod_container_status_restarts_total{%s})`, sel)
		},
	},
}

func metricNames() []string {
	names := make([]string, 0, len(metricCatalog))
	for name := range metricCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupMetric(name string) (metricSpec, error) {
	spec, ok := metricCatalog[name]
	if !ok {
		return metricSpec{}, types.NewError(types.KindInvalidInput,
			"unknown metric %q; supported: %v", name, metricNames())
	}
	return spec, nil
}

// --- get_current_resource_usage ---

type GetCurrentResourceUsageTool struct{ BaseTool }

func (t *GetCurrentResourceUsageTool) Name() string { return "get_current_resource_usage" }
func (t *GetCurrentResourceUsageTool) Description() string {
	return "Get current CPU and memory usage against configured limits for a namespace or deployment"
}
func (t *GetCurrentResourceUsageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Restrict to one deployment's pods (optional)"},
		},
		"required": []string{"namespace"},
	}
}

func (t *GetCurrentResourceUsageTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		deployment := getStringArg(args, "deployment_name", "")
		sel := deploymentSelector(ns, deployment)

		queries := map[string]string{
			"cpu_usage":    metricCatalog["cpu"].query(sel),
			"memory_usage": metricCatalog["memory"].query(sel),
			"cpu_limit":    fmt.Sprintf(`sum(kube_pod_container_resource_limits{%s, resource="cpu"})`, sel),
			"memory_limit": fmt.Sprintf(`sum(kube_pod_container_resource_limits{%s, resource="memory"})`, sel),
		}

		keys := sortedKeys(queries)
		results, errs := fanOut(ctx, keys, t.Cfg.MaxConcurrentFetches,
			func(ctx context.Context, key string) (float64, error) {
				samples, err := t.Prom.QueryInstant(ctx, queries[key])
				if err != nil {
					return 0, err
				}
				if len(samples) == 0 {
					return 0, types.NewError(types.KindInsufficientData, "no samples for %s", key)
				}
				return samples[0].Value, nil
			})

		// Usage is the point of this tool; missing limits only degrade it.
		if _, ok := results["cpu_usage"]; !ok {
			if _, ok := results["memory_usage"]; !ok {
				return nil, errs["cpu_usage"]
			}
		}

		usage := map[string]interface{}{
			"namespace": ns,
		}
		if deployment != "" {
			usage["deployment"] = deployment
		}
		var degraded []string
		for _, key := range keys {
			if v, ok := results[key]; ok {
				usage[key] = v
				continue
			}
			degraded = append(degraded, fmt.Sprintf("%s unavailable: %s", key, errorMessage(errs[key])))
		}
		if cpu, ok := results["cpu_usage"]; ok {
			if limit, ok := results["cpu_limit"]; ok && limit > 0 {
				usage["cpu_utilization_pct"] = 100 * cpu / limit
			}
		}
		if mem, ok := results["memory_usage"]; ok {
			if limit, ok := results["memory_limit"]; ok && limit > 0 {
				usage["memory_utilization_pct"] = 100 * mem / limit
			}
		}

		return &Outcome{
			Result:            usage,
			Degraded:          degraded,
			CollaboratorCalls: len(queries),
		}, nil
	}), nil
}

// --- query_metrics_timeseries ---

type QueryMetricsTimeseriesTool struct{ BaseTool }

func (t *QueryMetricsTimeseriesTool) Name() string { return "query_metrics_timeseries" }
func (t *QueryMetricsTimeseriesTool) Description() string {
	return "Run an arbitrary PromQL range query over a lookback window"
}
func (t *QueryMetricsTimeseriesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"promql_query": map[string]interface{}{"type": "string", "description": "PromQL expression"},
			"time_range":   map[string]interface{}{"type": "string", "description": "Lookback window, e.g. 1h, 24h, 7d (default 1h)"},
			"step":         map[string]interface{}{"type": "string", "description": "Sample step, e.g. 30s (optional; chosen automatically when omitted)"},
		},
		"required": []string{"promql_query"},
	}
}

func (t *QueryMetricsTimeseriesTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		query, err := requireStringArg(args, "promql_query")
		if err != nil {
			return nil, err
		}
		window, err := getWindowArg(args, "time_range", "1h")
		if err != nil {
			return nil, err
		}
		var step time.Duration
		if stepRaw := getStringArg(args, "step", ""); stepRaw != "" {
			step, err = parseWindow(stepRaw)
			if err != nil {
				return nil, err
			}
		}

		end := time.Now()
		series, err := t.Prom.QueryRange(ctx, query, end.Add(-window), end, step)
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return nil, types.NewError(types.KindInsufficientData, "query returned no series over %s", window)
		}

		truncated := false
		droppedTotal := 0
		out := make([]prom.Series, 0, len(series))
		for _, s := range series {
			points, dropped := analysis.SanitizeSeries(s.Points)
			droppedTotal += dropped
			capped, clipped := analysis.Tail(points, t.Cfg.MaxSeriesPoints)
			if clipped {
				truncated = true
			}
			out = append(out, prom.Series{Labels: s.Labels, Points: capped})
		}

		var warnings []string
		if truncated {
			warnings = append(warnings, fmt.Sprintf("series truncated to the newest %d points each", t.Cfg.MaxSeriesPoints))
		}
		if droppedTotal > 0 {
			warnings = append(warnings, fmt.Sprintf("dropped %d non-finite samples", droppedTotal))
		}

		return &Outcome{
			Result: map[string]interface{}{
				"query":        query,
				"time_range":   window.String(),
				"series":       out,
				"series_count": len(out),
			},
			Warnings:          warnings,
			Truncated:         truncated,
			CollaboratorCalls: 1,
		}, nil
	}), nil
}

// --- get_resource_trends ---

const maxSpikeTimestamps = 10

type GetResourceTrendsTool struct{ BaseTool }

func (t *GetResourceTrendsTool) Name() string { return "get_resource_trends" }
func (t *GetResourceTrendsTool) Description() string {
	return "Analyze a resource metric over time: mean, spread, slope, direction and spikes"
}
func (t *GetResourceTrendsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Restrict to one deployment's pods (optional)"},
			"metric_type":     map[string]interface{}{"type": "string", "description": "One of: cpu, memory, network_receive, network_transmit, restart_total"},
			"period":          map[string]interface{}{"type": "string", "description": "Lookback window, e.g. 1h, 24h, 7d (default 1h)"},
		},
		"required": []string{"namespace", "metric_type"},
	}
}

func (t *GetResourceTrendsTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		metricName, err := requireStringArg(args, "metric_type")
		if err != nil {
			return nil, err
		}
		spec, err := lookupMetric(metricName)
		if err != nil {
			return nil, err
		}
		window, err := getWindowArg(args, "period", "1h")
		if err != nil {
			return nil, err
		}
		deployment := getStringArg(args, "deployment_name", "")

		end := time.Now()
		query := spec.query(deploymentSelector(ns, deployment))
		points, dropped, err := t.Prom.FirstSeriesPoints(ctx, query, end.Add(-window), end)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, types.NewError(types.KindInsufficientData,
				"no %s samples for %s over %s", metricName, namespaceLabel(ns), window)
		}

		th := t.Cfg.Thresholds()
		summary, err := analysis.Summarize(points, metricName, th)
		if err != nil {
			return nil, err
		}

		spikes := analysis.DetectResourceSpikes(points, metricName, th)
		spikeTimes := make([]time.Time, 0, len(spikes))
		for _, sp := range spikes {
			if len(spikeTimes) == maxSpikeTimestamps {
				break
			}
			spikeTimes = append(spikeTimes, sp.ObservedAt)
		}

		var warnings []string
		if dropped > 0 {
			warnings = append(warnings, fmt.Sprintf("dropped %d non-finite samples before analysis", dropped))
		}
		if len(spikes) > maxSpikeTimestamps {
			warnings = append(warnings, fmt.Sprintf("spike timestamps capped at %d of %d", maxSpikeTimestamps, len(spikes)))
		}

		return &Outcome{
			Result: map[string]interface{}{
				"trend":            summary,
				"unit":             spec.unit,
				"period":           window.String(),
				"namespace":        ns,
				"spike_count":      len(spikes),
				"spike_timestamps": spikeTimes,
			},
			Warnings:          warnings,
			CollaboratorCalls: 1,
		}, nil
	}), nil
}
