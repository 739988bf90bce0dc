package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// ContainerState is the flattened view of one container's status.
type ContainerState struct {
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	RestartCount int32  `json:"restart_count"`
	State        string `json:"state"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	LastExitCode *int32 `json:"last_exit_code,omitempty"`
}

// PodStatus is the agent-facing health view of one pod.
type PodStatus struct {
	Name          string           `json:"name"`
	Namespace     string           `json:"namespace"`
	Phase         string           `json:"phase"`
	Ready         bool             `json:"ready"`
	Node          string           `json:"node"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	TotalRestarts int32            `json:"total_restarts"`
	Containers    []ContainerState `json:"containers"`
}

// --- get_pod_status ---

type GetPodStatusTool struct{ BaseTool }

func (t *GetPodStatusTool) Name() string { return "get_pod_status" }
func (t *GetPodStatusTool) Description() string {
	return "Get pod phases, readiness, restart counts and container states"
}
func (t *GetPodStatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Restrict to pods of this deployment (optional)"},
			"label_selector":  map[string]interface{}{"type": "string", "description": "Label selector, e.g. app=checkout (optional)"},
		},
		"required": []string{"namespace"},
	}
}

func (t *GetPodStatusTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		deployment := getStringArg(args, "deployment_name", "")
		selector := getStringArg(args, "label_selector", "")

		var pods []corev1.Pod
		if deployment != "" {
			pods, err = t.Clients.PodsForDeployment(ctx, ns, deployment)
		} else {
			pods, err = t.Clients.ListPods(ctx, ns, selector)
		}
		if err != nil {
			return nil, err
		}

		statuses := make([]PodStatus, 0, len(pods))
		healthy := 0
		for _, pod := range pods {
			s := buildPodStatus(&pod)
			if s.Ready && s.Phase == string(corev1.PodRunning) {
				healthy++
			}
			statuses = append(statuses, s)
		}

		return &Outcome{
			Result: map[string]interface{}{
				"pods":          statuses,
				"total_count":   len(statuses),
				"healthy_count": healthy,
				"namespace":     ns,
			},
			CollaboratorCalls: 1,
		}, nil
	}), nil
}

func buildPodStatus(pod *corev1.Pod) PodStatus {
	s := PodStatus{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     string(pod.Status.Phase),
		Node:      pod.Spec.NodeName,
	}
	if pod.Status.StartTime != nil {
		t := pod.Status.StartTime.Time
		s.StartedAt = &t
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			s.Ready = true
		}
	}
	for _, cs := range pod.Status.ContainerStatuses {
		s.TotalRestarts += cs.RestartCount
		s.Containers = append(s.Containers, buildContainerState(cs))
	}
	return s
}

func buildContainerState(cs corev1.ContainerStatus) ContainerState {
	out := ContainerState{
		Name:         cs.Name,
		Ready:        cs.Ready,
		RestartCount: cs.RestartCount,
	}
	switch {
	case cs.State.Running != nil:
		out.State = "running"
	case cs.State.Waiting != nil:
		out.State = "waiting"
		out.Reason = cs.State.Waiting.Reason
		out.Message = cs.State.Waiting.Message
	case cs.State.Terminated != nil:
		out.State = "terminated"
		out.Reason = cs.State.Terminated.Reason
		out.Message = cs.State.Terminated.Message
	default:
		out.State = "unknown"
	}
	if term := cs.LastTerminationState.Terminated; term != nil {
		code := term.ExitCode
		out.LastExitCode = &code
		if out.Reason == "" {
			out.Reason = term.Reason
		}
	}
	return out
}

// restartEventsFromPods extracts one restart event per recorded container
// termination. The API only keeps the last termination per container, so the
// current restart count is folded into the pattern counts by the caller.
func restartEventsFromPods(pods []corev1.Pod, since time.Time) []analysis.RestartEvent {
	var events []analysis.RestartEvent
	for _, pod := range pods {
		for _, cs := range pod.Status.ContainerStatuses {
			term := cs.LastTerminationState.Terminated
			if term == nil || term.FinishedAt.Time.Before(since) {
				continue
			}
			code := term.ExitCode
			events = append(events, analysis.RestartEvent{
				Container: pod.Name + "/" + cs.Name,
				Timestamp: term.FinishedAt.Time,
				Reason:    term.Reason,
				ExitCode:  &code,
			})
		}
	}
	return events
}

// --- get_recent_events ---

// EventRecord is a trimmed Kubernetes event.
type EventRecord struct {
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Kind      string    `json:"involved_kind"`
	Object    string    `json:"involved_object"`
	Count     int32     `json:"count"`
	LastSeen  time.Time `json:"last_seen"`
	Namespace string    `json:"namespace"`
}

type GetRecentEventsTool struct{ BaseTool }

func (t *GetRecentEventsTool) Name() string { return "get_recent_events" }
func (t *GetRecentEventsTool) Description() string {
	return "Get recent Kubernetes events, newest first, optionally filtered by type or object kind"
}
func (t *GetRecentEventsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":     map[string]interface{}{"type": "string", "description": "Kubernetes namespace (empty for all namespaces)"},
			"event_type":    map[string]interface{}{"type": "string", "description": "Filter: Normal or Warning (optional)"},
			"involved_kind": map[string]interface{}{"type": "string", "description": "Filter by object kind, e.g. Pod (optional)"},
			"time_window":   map[string]interface{}{"type": "string", "description": "Lookback window, e.g. 30m, 2h (default 1h)"},
		},
	}
}

func (t *GetRecentEventsTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns := getStringArg(args, "namespace", "")
		eventType := getStringArg(args, "event_type", "")
		kind := getStringArg(args, "involved_kind", "")
		window, err := getWindowArg(args, "time_window", "1h")
		if err != nil {
			return nil, err
		}
		since := time.Now().Add(-window)

		events, err := t.Clients.ListEvents(ctx, ns, eventFieldSelector(eventType, kind))
		if err != nil {
			return nil, err
		}

		// The field selector narrows the API response; the same predicates run
		// again here because older API servers match field selectors loosely.
		filtered := make([]corev1.Event, 0, len(events))
		for _, ev := range events {
			if eventTimestamp(&ev).Before(since) {
				continue
			}
			if eventType != "" && !strings.EqualFold(ev.Type, eventType) {
				continue
			}
			if kind != "" && !strings.EqualFold(ev.InvolvedObject.Kind, kind) {
				continue
			}
			filtered = append(filtered, ev)
		}

		// Oldest events drop first when over the cap.
		kept, truncated := analysis.TailByTime(filtered, func(ev corev1.Event) time.Time {
			return eventTimestamp(&ev)
		}, t.Cfg.MaxEvents)

		records := make([]EventRecord, 0, len(kept))
		warningCount := 0
		// Newest first for the agent.
		for i := len(kept) - 1; i >= 0; i-- {
			ev := kept[i]
			if ev.Type == corev1.EventTypeWarning {
				warningCount++
			}
			records = append(records, EventRecord{
				Type:      ev.Type,
				Reason:    ev.Reason,
				Message:   ev.Message,
				Kind:      ev.InvolvedObject.Kind,
				Object:    ev.InvolvedObject.Name,
				Count:     ev.Count,
				LastSeen:  eventTimestamp(&ev),
				Namespace: ev.Namespace,
			})
		}

		var warnings []string
		if truncated {
			warnings = append(warnings, fmt.Sprintf("event list truncated to the newest %d of %d matching events", len(kept), len(filtered)))
		}

		return &Outcome{
			Result: map[string]interface{}{
				"events":        records,
				"total_matched": len(filtered),
				"warning_count": warningCount,
				"namespace":     namespaceLabel(ns),
				"time_window":   window.String(),
			},
			Warnings:          warnings,
			Truncated:         truncated,
			CollaboratorCalls: 1,
		}, nil
	}), nil
}

// eventFieldSelector builds the server-side selector for the filters that the
// events API supports. Values are canonicalized because field selectors match
// exactly, unlike the tolerant in-memory pass.
func eventFieldSelector(eventType, kind string) string {
	var parts []string
	switch {
	case strings.EqualFold(eventType, corev1.EventTypeNormal):
		parts = append(parts, "type="+corev1.EventTypeNormal)
	case strings.EqualFold(eventType, corev1.EventTypeWarning):
		parts = append(parts, "type="+corev1.EventTypeWarning)
	}
	if kind != "" {
		parts = append(parts, "involvedObject.kind="+strings.ToUpper(kind[:1])+kind[1:])
	}
	return strings.Join(parts, ",")
}

func eventTimestamp(ev *corev1.Event) time.Time {
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp.Time
	}
	if !ev.EventTime.IsZero() {
		return ev.EventTime.Time
	}
	return ev.CreationTimestamp.Time
}
