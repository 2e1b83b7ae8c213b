// Package observe holds the OpenTelemetry metric instruments of VoiceGate and
// the Prometheus exporter bridge that serves them on /metrics.
//
// Tests should build their own [Metrics] with [NewMetrics] and a manual reader
// instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/VoiceGate"

// Metrics holds all instruments. The OTel types are safe for concurrent use.
type Metrics struct {
	// Verifications counts completed verifications by decision.
	Verifications metric.Int64Counter

	// VerifyErrors counts verifications that could not be evaluated, by
	// error kind.
	VerifyErrors metric.Int64Counter

	// Enrollments counts enrollment attempts by status
	// (stored, rejected, error).
	Enrollments metric.Int64Counter

	// Identifications counts identify queries by whether a speaker matched.
	Identifications metric.Int64Counter

	// AlignmentDistance records the compared distance of every alignment.
	AlignmentDistance metric.Float64Histogram

	// VerifyDuration tracks end-to-end verification latency.
	VerifyDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time by method,
	// route and status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// distanceBuckets straddle the default decision threshold of 800.
var distanceBuckets = []float64{
	10, 25, 50, 100, 200, 400, 600, 800, 1000, 1500, 2500, 5000,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Verifications, err = m.Int64Counter("voicegate.verifications",
		metric.WithDescription("Completed verifications by decision."),
	); err != nil {
		return nil, err
	}
	if met.VerifyErrors, err = m.Int64Counter("voicegate.verify.errors",
		metric.WithDescription("Verifications that could not be evaluated, by error kind."),
	); err != nil {
		return nil, err
	}
	if met.Enrollments, err = m.Int64Counter("voicegate.enrollments",
		metric.WithDescription("Enrollment attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.Identifications, err = m.Int64Counter("voicegate.identifications",
		metric.WithDescription("Identification queries by outcome."),
	); err != nil {
		return nil, err
	}

	if met.AlignmentDistance, err = m.Float64Histogram("voicegate.alignment.distance",
		metric.WithDescription("Alignment distance compared against the decision threshold."),
		metric.WithExplicitBucketBoundaries(distanceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VerifyDuration, err = m.Float64Histogram("voicegate.verify.duration",
		metric.WithDescription("End-to-end verification latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicegate.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Call it after [InitProvider] so the instruments are
// exported.
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

// RecordVerification records one evaluated verification.
func (m *Metrics) RecordVerification(ctx context.Context, decision string, elapsed time.Duration) {
	m.Verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
	m.VerifyDuration.Record(ctx, elapsed.Seconds())
}

// RecordVerifyError records a verification that ended in an error of kind.
func (m *Metrics) RecordVerifyError(ctx context.Context, kind string) {
	m.VerifyErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDistance records an alignment distance for the given purpose
// (verify or identify).
func (m *Metrics) RecordDistance(ctx context.Context, purpose string, distance float64) {
	m.AlignmentDistance.Record(ctx, distance, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// RecordEnrollment records an enrollment attempt.
func (m *Metrics) RecordEnrollment(ctx context.Context, status string) {
	m.Enrollments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordIdentification records an identify query.
func (m *Metrics) RecordIdentification(ctx context.Context, matched bool) {
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	m.Identifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
