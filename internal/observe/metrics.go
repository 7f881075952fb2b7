// Package observe provides application-wide observability primitives for
// Vocalaid: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vocalaid metrics.
const meterName = "github.com/vocalaid/vocalaid"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ClassificationDuration tracks end-to-end classification latency,
	// covering the phonetic matcher, the embedding classifier, fusion, and
	// calibration.
	ClassificationDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Classifications counts classification requests. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("status", ...), attribute.String("model", ...)
	Classifications metric.Int64Counter

	// EmergencyAlerts counts classifications that triggered the EMERGENCY
	// safety override.
	EmergencyAlerts metric.Int64Counter

	// FeedbackEvents counts feedback submissions. Use with attribute:
	//   attribute.String("applied", "true"|"false")
	FeedbackEvents metric.Int64Counter

	// --- Gauges ---

	// ReferenceRecords tracks the number of reference embeddings in the
	// store: the bootstrap count once at startup, +1 per applied feedback
	// insert, +n per snapshot import, -n per prune.
	ReferenceRecords metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// classification path is in-process compute plus at most a handful of store
// round-trips, so the buckets skew low.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ClassificationDuration, err = m.Float64Histogram("vocalaid.classify.duration",
		metric.WithDescription("End-to-end latency of one intent classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocalaid.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Classifications, err = m.Int64Counter("vocalaid.classify.requests",
		metric.WithDescription("Total classification requests by intent, status, and model."),
	); err != nil {
		return nil, err
	}
	if met.EmergencyAlerts, err = m.Int64Counter("vocalaid.emergency.alerts",
		metric.WithDescription("Total EMERGENCY safety-override activations."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackEvents, err = m.Int64Counter("vocalaid.feedback.events",
		metric.WithDescription("Total feedback submissions by applied outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ReferenceRecords, err = m.Int64UpDownCounter("vocalaid.reference.records",
		metric.WithDescription("Number of reference embeddings in the store."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordClassification is a convenience method that records one classification
// request: a counter increment with the standard attribute set plus a latency
// observation.
func (m *Metrics) RecordClassification(ctx context.Context, intent, status, model string, elapsed time.Duration) {
	m.Classifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("status", status),
			attribute.String("model", model),
		),
	)
	m.ClassificationDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("model", model)),
	)
}

// RecordFeedback is a convenience method that records a feedback submission
// and whether it mutated the reference store.
func (m *Metrics) RecordFeedback(ctx context.Context, applied bool) {
	v := "false"
	if applied {
		v = "true"
	}
	m.FeedbackEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("applied", v)),
	)
}

// RecordEmergencyAlert is a convenience method that records one EMERGENCY
// safety-override activation.
func (m *Metrics) RecordEmergencyAlert(ctx context.Context) {
	m.EmergencyAlerts.Add(ctx, 1)
}
