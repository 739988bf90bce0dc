package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/isitobservable/k8s-observer-mcp/pkg/config"
	"github.com/isitobservable/k8s-observer-mcp/pkg/discovery"
	"github.com/isitobservable/k8s-observer-mcp/pkg/k8s"
	mcpserver "github.com/isitobservable/k8s-observer-mcp/pkg/mcp"
	"github.com/isitobservable/k8s-observer-mcp/pkg/prom"
	"github.com/isitobservable/k8s-observer-mcp/pkg/telemetry"
	"github.com/isitobservable/k8s-observer-mcp/pkg/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.LogLevel)

	slog.Info("starting k8s-observer-mcp server", "cluster", cfg.ClusterName, "port", cfg.Port)

	// Initialize the OpenTelemetry pipelines: traces, metrics, logs
	tracerShutdown, err := telemetry.InitTracer(context.Background(), cfg.ClusterName)
	if err != nil {
		slog.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	meterShutdown, err := telemetry.InitMeterProvider(context.Background(), cfg.ClusterName)
	if err != nil {
		slog.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	loggerShutdown, err := telemetry.InitLogger(context.Background(), cfg.ClusterName)
	if err != nil {
		slog.Error("failed to initialize log export", "error", err)
		os.Exit(1)
	}

	// Initialize K8s clients
	clients, err := k8s.NewClients()
	if err != nil {
		slog.Error("failed to create K8s clients", "error", err)
		os.Exit(1)
	}

	promClient := prom.New(cfg.PrometheusURL, cfg.PrometheusBearerToken, cfg.MaxSeriesPoints, cfg.ToolTimeout)

	// Create tool registry
	registry := tools.NewRegistry()

	base := tools.BaseTool{Cfg: cfg, Clients: clients, Prom: promClient}

	// Register cluster-state tools (always available)
	registry.Register(&tools.GetDeploymentInfoTool{BaseTool: base})
	registry.Register(&tools.GetNamespaceSummaryTool{BaseTool: base})
	registry.Register(&tools.GetClusterCapacityTool{BaseTool: base})
	registry.Register(&tools.GetPodStatusTool{BaseTool: base})
	registry.Register(&tools.GetRecentEventsTool{BaseTool: base})
	registry.Register(&tools.GetContainerLogsTool{BaseTool: base})
	registry.Register(&tools.AnalyzeRestartPatternsTool{BaseTool: base})
	registry.Register(&tools.GetDeploymentHistoryTool{BaseTool: base})
	// The anomaly report runs without Prometheus, it just degrades to the
	// restart and readiness feeds.
	registry.Register(&tools.GetAnomalyReportTool{BaseTool: base})

	// Create MCP server
	srv := mcpserver.NewServer(registry, cfg.ToolTimeout)

	// Metrics-backed tool names for conditional registration
	metricsToolNames := []string{"get_current_resource_usage", "query_metrics_timeseries", "get_resource_trends", "compare_period_metrics"}

	// Metrics-source discovery with onChange callback
	disc := discovery.New(promClient, func(features discovery.Features) {
		if features.HasMetricsSource {
			registry.Register(&tools.GetCurrentResourceUsageTool{BaseTool: base})
			registry.Register(&tools.QueryMetricsTimeseriesTool{BaseTool: base})
			registry.Register(&tools.GetResourceTrendsTool{BaseTool: base})
			registry.Register(&tools.ComparePeriodMetricsTool{BaseTool: base})
		} else {
			for _, name := range metricsToolNames {
				registry.Unregister(name)
			}
		}

		// Re-sync tools with MCP server
		srv.SyncTools()
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	disc.Start()
	defer disc.Stop()

	// Health check endpoints
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	healthMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !disc.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "not ready: initial metrics-source probe pending")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// Start health check server on a separate port
	go func() {
		healthAddr := fmt.Sprintf(":%d", cfg.Port+1)
		slog.Info("health check server listening", "addr", healthAddr)
		if err := http.ListenAndServe(healthAddr, otelhttp.NewHandler(healthMux, "health")); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	// Start MCP Streamable HTTP server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server ready", "port", cfg.Port)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Flush pending OTel data before exit
	if err := tracerShutdown(shutdownCtx); err != nil {
		slog.Error("tracer shutdown error", "error", err)
	}
	if err := meterShutdown(shutdownCtx); err != nil {
		slog.Error("meter shutdown error", "error", err)
	}
	if err := loggerShutdown(shutdownCtx); err != nil {
		slog.Error("logger shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
