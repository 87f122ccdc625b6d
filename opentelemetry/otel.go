// Package opentelemetry owns the telemetry provider lifecycle for the server.
//
// When telemetry is disabled the package still returns a usable Telemetry
// value backed by bare SDK providers and a no-op shutdown, so the supervisor
// can treat both modes uniformly.
package opentelemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tar-2005/Workflowgenie/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilTelemetryConfig indicates that a nil config was provided to InitializeTelemetry.
var ErrNilTelemetryConfig = errors.New("telemetry config cannot be nil")

// TelemetryConfig carries the inputs for telemetry initialization.
type TelemetryConfig struct {
	LibraryName               string
	ServiceName               string
	ServiceVersion            string
	DeploymentEnv             string
	CollectorExporterEndpoint string
	EnableTelemetry           bool
	Logger                    log.Logger
}

// Telemetry holds the initialized providers and their shutdown handler.
type Telemetry struct {
	TelemetryConfig
	TracerProvider *sdktrace.TracerProvider
	MetricProvider *sdkmetric.MeterProvider
	shutdown       func()
}

func (tl *TelemetryConfig) newResource() *sdkresource.Resource {
	return sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(tl.ServiceName),
		semconv.ServiceVersion(tl.ServiceVersion),
		semconv.DeploymentEnvironmentName(tl.DeploymentEnv),
		semconv.TelemetrySDKLanguageGo,
	)
}

// InitializeTelemetry initializes the telemetry providers and sets them globally.
func InitializeTelemetry(cfg *TelemetryConfig) (*Telemetry, error) {
	if cfg == nil {
		return nil, ErrNilTelemetryConfig
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ctx := context.Background()

	if !cfg.EnableTelemetry {
		logger.Log(ctx, log.LevelWarn, "telemetry turned off")

		return &Telemetry{
			TelemetryConfig: *cfg,
			TracerProvider:  sdktrace.NewTracerProvider(),
			MetricProvider:  sdkmetric.NewMeterProvider(),
			shutdown:        func() {},
		}, nil
	}

	logger.Log(ctx, log.LevelInfo, "initializing telemetry",
		log.String("endpoint", cfg.CollectorExporterEndpoint))

	rsc := cfg.newResource()

	tExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.CollectorExporterEndpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("can't initialize tracer exporter: %w", err)
	}

	mExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.CollectorExporterEndpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("can't initialize metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tExp),
		sdktrace.WithResource(rsc),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mExp)),
	)
	otel.SetMeterProvider(mp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	shutdownHandler := func() {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Log(ctx, log.LevelError, "can't shutdown tracer provider", log.Err(err))
		}

		if err := mp.Shutdown(ctx); err != nil {
			logger.Log(ctx, log.LevelError, "can't shutdown meter provider", log.Err(err))
		}
	}

	logger.Log(ctx, log.LevelInfo, "telemetry initialized")

	return &Telemetry{
		TelemetryConfig: *cfg,
		TracerProvider:  tp,
		MetricProvider:  mp,
		shutdown:        shutdownHandler,
	}, nil
}

// ShutdownTelemetry shuts down the telemetry providers and exporters.
// Safe to call on a Telemetry created for disabled mode.
func (tl *Telemetry) ShutdownTelemetry() {
	if tl == nil || tl.shutdown == nil {
		return
	}

	tl.shutdown()
}

// Tracer returns a tracer from the configured provider.
func (tl *Telemetry) Tracer() trace.Tracer {
	if tl == nil || tl.TracerProvider == nil {
		return otel.Tracer("workflowgenie")
	}

	return tl.TracerProvider.Tracer(tl.LibraryName)
}
