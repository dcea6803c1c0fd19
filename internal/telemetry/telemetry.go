package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"student-fee-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider installs a global MeterProvider pushing to an OTLP gRPC
// collector. With no endpoint configured it returns nil and the global no-op
// provider stays in place.
func InitMeterProvider(ctx context.Context, cfg config.TelemetryConfig, serviceName, serviceVersion string, logger *slog.Logger) (*metric.MeterProvider, error) {
	if cfg.OTLPEndpoint == "" {
		logger.Info("OTel metrics export disabled (no endpoint configured)")
		return nil, nil
	}

	logger.Info("initializing OTel metrics", "endpoint", cfg.OTLPEndpoint)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter,
			metric.WithInterval(10*time.Second))),
	)

	otel.SetMeterProvider(meterProvider)
	logger.Info("OTel metrics initialized successfully")

	return meterProvider, nil
}

func Shutdown(ctx context.Context, meterProvider *metric.MeterProvider, logger *slog.Logger) error {
	if meterProvider == nil {
		return nil
	}
	logger.Info("shutting down OTel meter provider")
	if err := meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
