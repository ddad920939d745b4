package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// tracingEndpoint returns the collector URL from the flag, falling back to
// the standard OTLP environment variables. Empty means tracing is off.
func tracingEndpoint(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	for _, key := range []string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func initTracing(ctx context.Context, endpoint string, onError func(error)) (func(context.Context) error, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("nginxgen"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	if onError != nil {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(onError))
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// startTracing enables the exporter when an endpoint is configured and
// returns a flush-and-shutdown func that is always safe to call.
func startTracing(ctx context.Context, flagValue string, logger *slog.Logger) func() {
	endpoint := tracingEndpoint(flagValue)
	if endpoint == "" {
		return func() {}
	}
	shutdown, err := initTracing(ctx, endpoint, func(err error) {
		logger.Warn("tracing_export_error", slog.Any("err", err))
	})
	if err != nil {
		logger.Warn("tracing_disabled", slog.Any("err", err))
		return func() {}
	}
	logger.Debug("tracing_enabled", slog.String("endpoint", endpoint))
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.Any("err", err))
		}
	}
}

func wrapTracingHandler(enabled bool, name string, h http.Handler) http.Handler {
	if !enabled {
		return h
	}
	return otelhttp.NewHandler(h, name)
}
