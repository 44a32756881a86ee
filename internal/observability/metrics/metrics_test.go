package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("apartment_id", "123"),
		attribute.String("payment_id", "456"),
		attribute.String("outcome", "created"),
		attribute.String("water_type", "cold"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "apartment_id" || attr.Key == "payment_id" {
			t.Fatalf("high-cardinality label %q retained", attr.Key)
		}
	}
}

func TestRecordPaymentGenerated(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "tirta"}, provider)
	require.NoError(t, err)

	m.RecordPaymentGenerated(ctx, "created")
	m.RecordPaymentGenerated(ctx, "created")
	m.RecordPaymentGenerated(ctx, "updated")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, record := range scope.Metrics {
			if record.Name != "tirta_payments_generated_total" {
				continue
			}
			sum, ok := record.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				got[outcome.AsString()] = point.Value
			}
		}
	}
	require.Equal(t, map[string]int64{"created": 2, "updated": 1}, got)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPaymentGenerated(context.Background(), "created")
	m.RecordGenerationFailure(context.Background(), "missing_tariff")
	m.RecordPaymentTransition(context.Background(), "pending", "paid", "pay")
	m.RecordReading(context.Background(), "cold")
	m.RecordBilledVolume(context.Background(), "hot", 1.5)
}
