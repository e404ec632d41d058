package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// Config selects the span exporter. OTLPEndpoint wins over Stdout; with neither
// set the provider records nothing.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Stdout       bool
}

// InitTracer installs a global tracer provider and the W3C propagators. It never
// fails: exporter problems are logged and leave a provider without exporters.
func InitTracer(cfg Config, appLogger *logger.Logger) *sdktrace.TracerProvider {
	log := appLogger.Named("tracer")

	// Propagation is wanted even without an exporter so trace headers still flow
	// through NATS messages.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	exporter, err := newExporter(cfg)
	if err != nil {
		log.Error("failed to create trace exporter", zap.Error(err))
		exporter = nil
	}
	if exporter == nil {
		log.Info("OpenTelemetry tracing disabled: no exporter configured")
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		log.Warn("failed to build OpenTelemetry resource, using defaults", zap.Error(err))
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info("OpenTelemetry tracer initialized",
		zap.String("service_name", cfg.ServiceName),
		zap.String("otlp_endpoint", cfg.OTLPEndpoint),
		zap.Bool("stdout", cfg.Stdout),
	)
	return tp
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch {
	case cfg.OTLPEndpoint != "":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	case cfg.Stdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, nil
	}
}

// Shutdown flushes pending spans, bounded by timeout.
func Shutdown(tp *sdktrace.TracerProvider, timeout time.Duration, appLogger *logger.Logger) {
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		appLogger.Error("failed to shut down tracer provider", zap.Error(err))
	}
}
