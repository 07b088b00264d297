package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	metrics "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	TokensEmitted  metrics.Int64Counter
	TokensConsumed metrics.Int64Counter
	TokensDropped  metrics.Int64Counter
	HandlerErrors  metrics.Int64Counter

	flowMeter = "flow-meter"
)

func init() {
	// instruments default to the global (no-op) provider so that handler
	// code can record unconditionally; SetupOtel rebinds them
	registerInstruments()
}

type Otel struct {
	meterProvider *metric.MeterProvider
}

// SetupOtel installs a Prometheus-backed meter provider and rebinds the
// package instruments to it.
func SetupOtel(name string) (*Otel, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
		)),
	)
	otel.SetMeterProvider(provider)
	registerInstruments()
	return &Otel{meterProvider: provider}, nil
}

func (o *Otel) Stop(ctx context.Context) {
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}

func registerInstruments() {
	meter := otel.Meter(flowMeter)
	TokensEmitted, _ = meter.Int64Counter("zenflow.tokens.emitted",
		metrics.WithDescription("tokens emitted by the flow handlers"))
	TokensConsumed, _ = meter.Int64Counter("zenflow.tokens.consumed",
		metrics.WithDescription("tokens consumed by the flow handlers"))
	TokensDropped, _ = meter.Int64Counter("zenflow.tokens.dropped",
		metrics.WithDescription("tokens dropped because no transition applied"))
	HandlerErrors, _ = meter.Int64Counter("zenflow.handler.errors",
		metrics.WithDescription("collaborator and dispatch failures per handler"))
}
