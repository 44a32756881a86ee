package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes billing engine instruments.
type Metrics struct {
	paymentsGenerated  metric.Int64Counter
	generationFailures metric.Int64Counter
	paymentTransitions metric.Int64Counter
	readingsRecorded   metric.Int64Counter
	billedVolume       metric.Float64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tirta"
	}
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(name)

	paymentsGenerated, err := meter.Int64Counter("tirta_payments_generated_total",
		metric.WithDescription("Payments created or re-billed by the generator."))
	if err != nil {
		return nil, err
	}
	generationFailures, err := meter.Int64Counter("tirta_payment_generation_failures_total",
		metric.WithDescription("Payment generation attempts rejected by billing rules."))
	if err != nil {
		return nil, err
	}
	paymentTransitions, err := meter.Int64Counter("tirta_payment_transitions_total",
		metric.WithDescription("Payment status transitions."))
	if err != nil {
		return nil, err
	}
	readingsRecorded, err := meter.Int64Counter("tirta_meter_readings_recorded_total",
		metric.WithDescription("Meter readings accepted."))
	if err != nil {
		return nil, err
	}
	billedVolume, err := meter.Float64Counter("tirta_billed_volume_m3_total",
		metric.WithDescription("Water volume billed, in cubic meters."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentsGenerated:  paymentsGenerated,
		generationFailures: generationFailures,
		paymentTransitions: paymentTransitions,
		readingsRecorded:   readingsRecorded,
		billedVolume:       billedVolume,
	}, nil
}

// RecordPaymentGenerated counts a successful generation; outcome is created or updated.
func (m *Metrics) RecordPaymentGenerated(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.paymentsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordGenerationFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.generationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPaymentTransition(ctx context.Context, from, to, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.paymentTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReading(ctx context.Context, waterType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("water_type", strings.TrimSpace(waterType)))
	m.readingsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBilledVolume(ctx context.Context, waterType string, volume float64) {
	if m == nil || volume <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("water_type", strings.TrimSpace(waterType)))
	m.billedVolume.Add(ctx, volume, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"reason":      {},
	"from_status": {},
	"to_status":   {},
	"action":      {},
	"water_type":  {},
	"route":       {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
