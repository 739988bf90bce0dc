package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/config"
	"github.com/isitobservable/k8s-observer-mcp/pkg/k8s"
	"github.com/isitobservable/k8s-observer-mcp/pkg/prom"
	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error)
}

type BaseTool struct {
	Cfg     *config.Config
	Clients *k8s.Clients
	Prom    *prom.Client
}

func getStringArg(args map[string]interface{}, key string, defaultVal string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

func getIntArg(args map[string]interface{}, key string, defaultVal int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return defaultVal
}

func getBoolArg(args map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// parseWindow parses lookback windows like "30m", "6h", "7d". The "d" suffix
// is accepted on top of time.ParseDuration's units because day-scale windows
// are the common case for trend analysis.
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, types.NewError(types.KindInvalidInput, "invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, types.NewError(types.KindInvalidInput, "invalid duration %q (use s, m, h or d suffix)", s)
	}
	return d, nil
}

// getWindowArg reads a duration argument, falling back to defaultVal when
// absent and failing on malformed input.
func getWindowArg(args map[string]interface{}, key, defaultVal string) (time.Duration, error) {
	return parseWindow(getStringArg(args, key, defaultVal))
}

func requireStringArg(args map[string]interface{}, key string) (string, error) {
	v := getStringArg(args, key, "")
	if v == "" {
		return "", types.NewError(types.KindInvalidInput, "%s is required", key)
	}
	return v, nil
}

// namespaceLabel renders a namespace for messages, using "all" for the
// cluster-wide empty selector.
func namespaceLabel(ns string) string {
	if ns == "" {
		return "all"
	}
	return ns
}

// deploymentSelector builds the PromQL label selector used by the canned
// metric queries: pods of one deployment, or a whole namespace.
func deploymentSelector(namespace, deployment string) string {
	if deployment != "" {
		return fmt.Sprintf(`namespace=%q, pod=~"%s.*"`, namespace, deployment)
	}
	return fmt.Sprintf(`namespace=%q`, namespace)
}
