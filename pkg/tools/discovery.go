package tools

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// ReplicaStatus summarizes replica counts for a deployment.
type ReplicaStatus struct {
	Desired     int32 `json:"desired"`
	Ready       int32 `json:"ready"`
	Available   int32 `json:"available"`
	Unavailable int32 `json:"unavailable"`
}

// DeploymentInfo is the agent-facing view of one deployment.
type DeploymentInfo struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Replicas  ReplicaStatus     `json:"replicas"`
	Image     string            `json:"image"`
	Images    []string          `json:"images"`
	CreatedAt time.Time         `json:"created_at"`
	Labels    map[string]string `json:"labels"`
	Strategy  string            `json:"strategy"`
	Healthy   bool              `json:"healthy"`
}

// --- get_deployment_info ---

type GetDeploymentInfoTool struct{ BaseTool }

func (t *GetDeploymentInfoTool) Name() string { return "get_deployment_info" }
func (t *GetDeploymentInfoTool) Description() string {
	return "Get deployment details: images, replica status, labels, and health"
}
func (t *GetDeploymentInfoTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace":       map[string]interface{}{"type": "string", "description": "Kubernetes namespace (empty for all namespaces)"},
			"deployment_name": map[string]interface{}{"type": "string", "description": "Specific deployment to fetch (optional)"},
		},
	}
}

func (t *GetDeploymentInfoTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	ns := getStringArg(args, "namespace", "")
	name := getStringArg(args, "deployment_name", "")

	return Execute(func() (*Outcome, error) {
		var deployments []appsv1.Deployment
		calls := 1
		if name != "" {
			if ns == "" {
				return nil, types.NewError(types.KindInvalidInput, "namespace is required when deployment_name is set")
			}
			dep, err := t.Clients.GetDeployment(ctx, ns, name)
			if err != nil {
				return nil, err
			}
			deployments = []appsv1.Deployment{*dep}
		} else {
			var err error
			deployments, err = t.Clients.ListDeployments(ctx, ns)
			if err != nil {
				return nil, err
			}
		}

		infos := make([]DeploymentInfo, 0, len(deployments))
		healthy := 0
		for _, dep := range deployments {
			info := buildDeploymentInfo(&dep)
			if info.Healthy {
				healthy++
			}
			infos = append(infos, info)
		}

		return &Outcome{
			Result: map[string]interface{}{
				"deployments":   infos,
				"total_count":   len(infos),
				"healthy_count": healthy,
				"namespace":     namespaceLabel(ns),
			},
			CollaboratorCalls: calls,
		}, nil
	}), nil
}

func buildDeploymentInfo(dep *appsv1.Deployment) DeploymentInfo {
	images := make([]string, 0, len(dep.Spec.Template.Spec.Containers))
	for _, c := range dep.Spec.Template.Spec.Containers {
		images = append(images, c.Image)
	}
	primary := "unknown"
	if len(images) > 0 {
		primary = images[0]
	}

	desired := int32(0)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	replicas := ReplicaStatus{
		Desired:     desired,
		Ready:       dep.Status.ReadyReplicas,
		Available:   dep.Status.AvailableReplicas,
		Unavailable: dep.Status.UnavailableReplicas,
	}

	return DeploymentInfo{
		Name:      dep.Name,
		Namespace: dep.Namespace,
		Replicas:  replicas,
		Image:     primary,
		Images:    images,
		CreatedAt: dep.CreationTimestamp.Time,
		Labels:    dep.Labels,
		Strategy:  string(dep.Spec.Strategy.Type),
		Healthy:   replicas.Ready >= replicas.Desired,
	}
}

// --- get_namespace_summary ---

type GetNamespaceSummaryTool struct{ BaseTool }

func (t *GetNamespaceSummaryTool) Name() string { return "get_namespace_summary" }
func (t *GetNamespaceSummaryTool) Description() string {
	return "Summarize workloads per namespace: pod counts, deployments, services, restarts"
}
func (t *GetNamespaceSummaryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{"type": "string", "description": "Namespace to summarize (empty for all non-system namespaces)"},
		},
	}
}

func (t *GetNamespaceSummaryTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	ns := getStringArg(args, "namespace", "")

	return Execute(func() (*Outcome, error) {
		namespaces := []string{ns}
		calls := 0
		if ns == "" {
			all, err := t.Clients.ListNamespaces(ctx)
			if err != nil {
				return nil, err
			}
			calls++
			namespaces = namespaces[:0]
			for _, item := range all {
				if isSystemNamespace(item.Name) {
					continue
				}
				namespaces = append(namespaces, item.Name)
			}
		}

		type nsSummary struct {
			Name            string `json:"name"`
			PodCount        int    `json:"pod_count"`
			RunningPods     int    `json:"running_pods"`
			DeploymentCount int    `json:"deployment_count"`
			ServiceCount    int    `json:"service_count"`
			TotalRestarts   int32  `json:"total_restarts"`
		}

		var degraded []string
		summaries := make([]nsSummary, 0, len(namespaces))
		for _, name := range namespaces {
			pods, err := t.Clients.ListPods(ctx, name, "")
			if err != nil {
				degraded = append(degraded, fmt.Sprintf("namespace %s skipped: %s", name, errorMessage(err)))
				continue
			}
			deployments, err := t.Clients.ListDeployments(ctx, name)
			if err != nil {
				degraded = append(degraded, fmt.Sprintf("deployments unavailable for %s: %s", name, errorMessage(err)))
			}
			services, err := t.Clients.ListServices(ctx, name)
			if err != nil {
				degraded = append(degraded, fmt.Sprintf("services unavailable for %s: %s", name, errorMessage(err)))
			}
			calls += 3

			s := nsSummary{
				Name:            name,
				PodCount:        len(pods),
				DeploymentCount: len(deployments),
				ServiceCount:    len(services),
			}
			for _, pod := range pods {
				if pod.Status.Phase == corev1.PodRunning {
					s.RunningPods++
				}
				for _, cs := range pod.Status.ContainerStatuses {
					s.TotalRestarts += cs.RestartCount
				}
			}
			summaries = append(summaries, s)
		}

		return &Outcome{
			Result: map[string]interface{}{
				"namespaces":  summaries,
				"total_count": len(summaries),
			},
			Degraded:          degraded,
			CollaboratorCalls: calls,
		}, nil
	}), nil
}

func isSystemNamespace(name string) bool {
	switch name {
	case "kube-system", "kube-public", "kube-node-lease", "local-path-storage":
		return true
	}
	return false
}

// --- get_cluster_capacity ---

type GetClusterCapacityTool struct{ BaseTool }

func (t *GetClusterCapacityTool) Name() string { return "get_cluster_capacity" }
func (t *GetClusterCapacityTool) Description() string {
	return "Get node-level capacity and readiness for the whole cluster"
}
func (t *GetClusterCapacityTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *GetClusterCapacityTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return Execute(func() (*Outcome, error) {
		nodes, err := t.Clients.ListNodes(ctx)
		if err != nil {
			return nil, err
		}

		type nodeInfo struct {
			Name              string            `json:"name"`
			Ready             bool              `json:"ready"`
			CPUCapacity       string            `json:"cpu_capacity"`
			MemoryCapacity    string            `json:"memory_capacity"`
			CPUAllocatable    string            `json:"cpu_allocatable"`
			MemoryAllocatable string            `json:"memory_allocatable"`
			Labels            map[string]string `json:"labels"`
		}

		infos := make([]nodeInfo, 0, len(nodes))
		ready := 0
		for _, node := range nodes {
			info := nodeInfo{
				Name:              node.Name,
				CPUCapacity:       node.Status.Capacity.Cpu().String(),
				MemoryCapacity:    node.Status.Capacity.Memory().String(),
				CPUAllocatable:    node.Status.Allocatable.Cpu().String(),
				MemoryAllocatable: node.Status.Allocatable.Memory().String(),
				Labels:            node.Labels,
			}
			for _, cond := range node.Status.Conditions {
				if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
					info.Ready = true
				}
			}
			if info.Ready {
				ready++
			}
			infos = append(infos, info)
		}

		return &Outcome{
			Result: map[string]interface{}{
				"nodes":       infos,
				"node_count":  len(infos),
				"nodes_ready": ready,
			},
			CollaboratorCalls: 1,
		}, nil
	}), nil
}
