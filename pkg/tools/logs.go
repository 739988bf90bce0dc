package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/analysis"
	"github.com/isitobservable/k8s-observer-mcp/pkg/k8s"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// ContainerLogs holds the (possibly truncated) log tail of one container.
type ContainerLogs struct {
	Container string   `json:"container"`
	Lines     []string `json:"lines"`
	LineCount int      `json:"line_count"`
	Truncated bool     `json:"truncated"`
}

type GetContainerLogsTool struct{ BaseTool }

func (t *GetContainerLogsTool) Name() string { return "get_container_logs" }
func (t *GetContainerLogsTool) Description() string {
	return "Fetch the log tail of a pod's containers, capped to a bounded number of lines"
}
func (t *GetContainerLogsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":      map[string]interface{}{"type": "string", "description": "Kubernetes namespace"},
			"pod_name":       map[string]interface{}{"type": "string", "description": "Pod to read logs from"},
			"container_name": map[string]interface{}{"type": "string", "description": "Container name (optional; all containers when omitted)"},
			"tail_lines":     map[string]interface{}{"type": "integer", "description": "Maximum lines per container (default 100)"},
			"since":          map[string]interface{}{"type": "string", "description": "Only logs newer than this window, e.g. 10m (optional)"},
			"previous":       map[string]interface{}{"type": "boolean", "description": "Read the previous container instance's logs"},
		},
		"required": []string{"namespace", "pod_name"},
	}
}

func (t *GetContainerLogsTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		ns, err := requireStringArg(args, "namespace")
		if err != nil {
			return nil, err
		}
		podName, err := requireStringArg(args, "pod_name")
		if err != nil {
			return nil, err
		}
		container := getStringArg(args, "container_name", "")
		tailLines := getIntArg(args, "tail_lines", t.Cfg.MaxLogLines)
		if tailLines < 1 || tailLines > t.Cfg.MaxLogLines {
			tailLines = t.Cfg.MaxLogLines
		}
		previous := getBoolArg(args, "previous", false)

		opts := k8s.LogOptions{Previous: previous}
		if sinceRaw := getStringArg(args, "since", ""); sinceRaw != "" {
			window, err := parseWindow(sinceRaw)
			if err != nil {
				return nil, err
			}
			opts.SinceSeconds = int64(window / time.Second)
		}
		// Over-fetch one line so the cap being hit is observable.
		opts.TailLines = int64(tailLines + 1)

		pod, err := t.Clients.GetPod(ctx, ns, podName)
		if err != nil {
			return nil, err
		}

		containers := k8s.ContainerNames(pod)
		if container != "" {
			found := false
			for _, c := range containers {
				if c == container {
					found = true
					break
				}
			}
			if !found {
				return nil, types.NewError(types.KindNotFound,
					"container %q not found in pod %s; available: %s",
					container, podName, k8s.FormatContainerList(containers))
			}
			containers = []string{container}
		}

		results, errs := fanOut(ctx, containers, t.Cfg.MaxConcurrentFetches,
			func(ctx context.Context, name string) ([]string, error) {
				return t.Clients.GetLogs(ctx, ns, podName, name, opts)
			})

		// Every container failed: the tool failed.
		if len(results) == 0 && len(errs) > 0 {
			first := containers[0]
			if _, ok := errs[first]; !ok {
				first = sortedKeys(errs)[0]
			}
			return nil, errs[first]
		}

		truncated := false
		logs := make([]ContainerLogs, 0, len(results))
		for _, name := range sortedKeys(results) {
			lines, clipped := analysis.Tail(results[name], tailLines)
			if clipped {
				truncated = true
			}
			logs = append(logs, ContainerLogs{
				Container: name,
				Lines:     lines,
				LineCount: len(lines),
				Truncated: clipped,
			})
		}

		var degraded []string
		for _, name := range sortedKeys(errs) {
			degraded = append(degraded, fmt.Sprintf("logs unavailable for container %s: %s", name, errorMessage(errs[name])))
		}

		var warnings []string
		if truncated {
			warnings = append(warnings, fmt.Sprintf("log output truncated to the newest %d lines per container", tailLines))
		}

		return &Outcome{
			Result: map[string]interface{}{
				"pod":        podName,
				"namespace":  ns,
				"containers": logs,
			},
			Warnings:          warnings,
			Degraded:          degraded,
			Truncated:         truncated,
			CollaboratorCalls: 1 + len(containers),
		}, nil
	}), nil
}
