package k8s

import (
	"context"
	"fmt"
	"io"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// maxLogBytes bounds a single log fetch so one noisy container cannot blow
// up memory before the line cap is applied.
const maxLogBytes = 512 * 1024

// LogOptions narrows a container log fetch.
type LogOptions struct {
	TailLines    int64
	SinceSeconds int64 // 0 means no since filter
	Previous     bool
}

// GetLogs fetches the tail of a container's log as individual lines. The
// byte-level guard here is a transport concern; the caller still applies the
// configured line cap through the bounded collector.
func (c *Clients) GetLogs(ctx context.Context, namespace, pod, container string, opts LogOptions) ([]string, error) {
	podOpts := &corev1.PodLogOptions{
		Container: container,
		Previous:  opts.Previous,
	}
	if opts.TailLines > 0 {
		podOpts.TailLines = &opts.TailLines
	}
	if opts.SinceSeconds > 0 {
		podOpts.SinceSeconds = &opts.SinceSeconds
	}

	req := c.Clientset.CoreV1().Pods(namespace).GetLogs(pod, podOpts)
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, classify(err, "streaming logs for %s/%s container %s", namespace, pod, container)
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxLogBytes))
	if err != nil {
		return nil, classify(err, "reading log stream for %s/%s container %s", namespace, pod, container)
	}

	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// ContainerNames lists the containers declared in a pod spec, in spec order.
func ContainerNames(pod *corev1.Pod) []string {
	names := make([]string, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		names = append(names, c.Name)
	}
	return names
}

// FormatContainerList renders container names for error messages.
func FormatContainerList(names []string) string {
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
