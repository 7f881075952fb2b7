package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// attrValue returns the string value of the named attribute on a data point,
// or "" when absent.
func attrValue(attrs attribute.Set, key string) string {
	for _, kv := range attrs.ToSlice() {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordClassification(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordClassification(ctx, "HELP", "confirmed", "hybrid", 12*time.Millisecond)
	m.RecordClassification(ctx, "HELP", "confirmed", "hybrid", 9*time.Millisecond)
	m.RecordClassification(ctx, "WATER", "needs_confirmation", "phonetic", 4*time.Millisecond)

	rm := collect(t, reader)

	met := findMetric(rm, "vocalaid.classify.requests")
	if met == nil {
		t.Fatal("request counter not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("request counter is not a sum")
	}

	// Find the data point for the repeated HELP classification.
	found := false
	for _, dp := range sum.DataPoints {
		if attrValue(dp.Attributes, "intent") != "HELP" {
			continue
		}
		found = true
		if dp.Value != 2 {
			t.Errorf("counter value = %d, want 2", dp.Value)
		}
		if got := attrValue(dp.Attributes, "status"); got != "confirmed" {
			t.Errorf("status attribute = %q, want %q", got, "confirmed")
		}
		if got := attrValue(dp.Attributes, "model"); got != "hybrid" {
			t.Errorf("model attribute = %q, want %q", got, "hybrid")
		}
	}
	if !found {
		t.Error("data point with intent=HELP not found")
	}

	// The latency histogram should have collected all three observations.
	met = findMetric(rm, "vocalaid.classify.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration metric is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("histogram sample count = %d, want 3", total)
	}
}

func TestRecordFeedback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFeedback(ctx, true)
	m.RecordFeedback(ctx, true)
	m.RecordFeedback(ctx, false)

	rm := collect(t, reader)
	met := findMetric(rm, "vocalaid.feedback.events")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	var applied, skipped int64
	for _, dp := range sum.DataPoints {
		switch attrValue(dp.Attributes, "applied") {
		case "true":
			applied = dp.Value
		case "false":
			skipped = dp.Value
		}
	}
	if applied != 2 {
		t.Errorf("applied=true value = %d, want 2", applied)
	}
	if skipped != 1 {
		t.Errorf("applied=false value = %d, want 1", skipped)
	}
}

func TestRecordEmergencyAlert(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEmergencyAlert(ctx)

	rm := collect(t, reader)
	met := findMetric(rm, "vocalaid.emergency.alerts")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("counter value = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestReferenceRecordsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Bootstrap load, one applied feedback insert, then a prune of three.
	m.ReferenceRecords.Add(ctx, 12)
	m.ReferenceRecords.Add(ctx, 1)
	m.ReferenceRecords.Add(ctx, -3)

	rm := collect(t, reader)
	met := findMetric(rm, "vocalaid.reference.records")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 10 {
		t.Errorf("gauge value = %d, want 10", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "POST"),
			attribute.String("path", "/api/classify"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "vocalaid.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
