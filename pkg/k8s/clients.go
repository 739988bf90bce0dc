// Package k8s wraps the Kubernetes API as the cluster resource source
// consumed by the tools: deployments, pods, events, and container logs.
// All failures are classified into the structured error kinds before they
// leave this package.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

type Clients struct {
	Clientset kubernetes.Interface
}

// NewClients builds the Kubernetes clientset, preferring in-cluster service
// account credentials and falling back to KUBECONFIG or the default
// kubeconfig path for local development.
func NewClients() (*Clients, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			if home, herr := os.UserHomeDir(); herr == nil {
				kubeconfig = filepath.Join(home, ".kube", "config")
			}
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create K8s config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Clients{Clientset: clientset}, nil
}

func (c *Clients) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	list, err := c.Clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "listing deployments in %q", namespace)
	}
	return list.Items, nil
}

func (c *Clients) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	dep, err := c.Clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, "getting deployment %s/%s", namespace, name)
	}
	return dep, nil
}

func (c *Clients) ListReplicaSets(ctx context.Context, namespace, labelSelector string) ([]appsv1.ReplicaSet, error) {
	list, err := c.Clientset.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, classify(err, "listing replicasets in %q", namespace)
	}
	return list.Items, nil
}

func (c *Clients) ListPods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error) {
	list, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, classify(err, "listing pods in %q", namespace)
	}
	return list.Items, nil
}

func (c *Clients) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, "getting pod %s/%s", namespace, name)
	}
	return pod, nil
}

// PodsForDeployment resolves a deployment's label selector and lists the
// pods it governs.
func (c *Clients) PodsForDeployment(ctx context.Context, namespace, deployment string) ([]corev1.Pod, error) {
	dep, err := c.GetDeployment(ctx, namespace, deployment)
	if err != nil {
		return nil, err
	}
	selector := metav1.FormatLabelSelector(dep.Spec.Selector)
	return c.ListPods(ctx, namespace, selector)
}

func (c *Clients) ListEvents(ctx context.Context, namespace, fieldSelector string) ([]corev1.Event, error) {
	list, err := c.Clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fieldSelector,
	})
	if err != nil {
		return nil, classify(err, "listing events in %q", namespace)
	}
	return list.Items, nil
}

func (c *Clients) ListNamespaces(ctx context.Context) ([]corev1.Namespace, error) {
	list, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "listing namespaces")
	}
	return list.Items, nil
}

func (c *Clients) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "listing nodes")
	}
	return list.Items, nil
}

func (c *Clients) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	list, err := c.Clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "listing services in %q", namespace)
	}
	return list.Items, nil
}

// classify maps API server failures onto the structured error kinds. The
// scope describes what was being fetched; the upstream message goes into
// Detail so the top-level message stays stable and readable.
func classify(err error, scope string, args ...any) error {
	kind := types.KindInternal
	switch {
	case apierrors.IsNotFound(err):
		kind = types.KindNotFound
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		kind = types.KindAuth
	case apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		kind = types.KindTimeout
	case apierrors.IsBadRequest(err) || apierrors.IsInvalid(err):
		kind = types.KindInvalidInput
	}
	return &types.ObserverError{
		Kind:    kind,
		Message: fmt.Sprintf("kubernetes API error while "+scope, args...),
		Detail:  err.Error(),
	}
}
