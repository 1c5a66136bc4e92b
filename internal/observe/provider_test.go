package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRelayViews_DropSessionFromUtterances(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(relayViews()...),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// Two sessions, one language: export must collapse to a single series.
	m.RecordUtterance(context.Background(), "AB12", "es")
	m.RecordUtterance(context.Background(), "ZZ99", "es")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	met := findMetric(rm, "babelrelay.utterances")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("got %d series, want 1 (session attribute must not split series)", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("value = %d, want 2", dp.Value)
	}
	if _, ok := dp.Attributes.Value("session"); ok {
		t.Error("session attribute survived export")
	}
	if lang, _ := dp.Attributes.Value("language"); lang.AsString() != "es" {
		t.Errorf("language attribute = %q, want %q", lang.AsString(), "es")
	}
}
