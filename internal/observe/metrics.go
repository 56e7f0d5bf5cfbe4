// Package observe provides OpenTelemetry metric instruments for the voice client.
//
// Instruments are created from a [metric.MeterProvider]. [DefaultMetrics] uses
// the global provider, which is a no-op until an SDK provider is registered;
// tests should use [NewMetrics] with an SDK provider backed by a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all client metrics.
const meterName = "github.com/book-expert/voice-client"

// Metric names.
const (
	RequestDurationName = "voice.client.request.duration"
	RequestsName        = "voice.client.requests"
)

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// latencyBuckets are histogram boundaries in seconds. Synthesis requests can
// take tens of seconds on a cold model.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// Metrics holds the instruments recorded by the API client.
type Metrics struct {
	// RequestDuration tracks backend call latency. Attributes: endpoint, status.
	RequestDuration metric.Float64Histogram

	// Requests counts backend calls. Attributes: endpoint, status, kind.
	Requests metric.Int64Counter
}

// NewMetrics creates the client instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}

	var err error

	met.RequestDuration, err = m.Float64Histogram(RequestDurationName,
		metric.WithDescription("Latency of voice backend requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	met.Requests, err = m.Int64Counter(RequestsName,
		metric.WithDescription("Total voice backend requests by endpoint, status and error kind."),
	)
	if err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global meter
// provider. Panics if instrument creation fails.
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

// RecordRequest records one completed backend call. kind is empty on success.
func (m *Metrics) RecordRequest(ctx context.Context, endpoint string, elapsed time.Duration, kind string) {
	status := StatusOK
	if kind != "" {
		status = StatusError
	}

	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)

	m.RequestDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.Requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
		attribute.String("kind", kind),
	))
}
