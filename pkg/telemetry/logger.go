package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InitLogger wires slog records into the OTLP log pipeline when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. Records keep flowing to the existing
// stdout handler either way; the bridge handler fans each record out to both.
func InitLogger(ctx context.Context, clusterName string) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Info("telemetry: log export disabled (OTEL_EXPORTER_OTLP_ENDPOINT not set)")
		return func(ctx context.Context) error { return nil }, nil
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
	}

	res, err := newResource(clusterName)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	bridge := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(lp))
	slog.SetDefault(slog.New(teeHandler{slog.Default().Handler(), bridge}))

	slog.Info("telemetry: log export enabled", "endpoint", endpoint)
	return lp.Shutdown, nil
}

// teeHandler forwards each record to both underlying handlers.
type teeHandler struct {
	stdout slog.Handler
	otel   slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdout.Enabled(ctx, level) || h.otel.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.stdout.Enabled(ctx, r.Level) {
		firstErr = h.stdout.Handle(ctx, r.Clone())
	}
	if h.otel.Enabled(ctx, r.Level) {
		if err := h.otel.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{h.stdout.WithAttrs(attrs), h.otel.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{h.stdout.WithGroup(name), h.otel.WithGroup(name)}
}
