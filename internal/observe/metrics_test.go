package observe_test

import (
	"context"
	"testing"
	"time"

	"github.com/book-expert/voice-client/internal/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	return m, reader
}

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

func TestRecordRequest(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "/api/v1/tts", 1500*time.Millisecond, "")
	m.RecordRequest(ctx, "/api/v1/tts", 200*time.Millisecond, "transport")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	hist := findMetric(rm, observe.RequestDurationName)
	require.NotNil(t, hist)

	histData, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var observations uint64
	for _, dp := range histData.DataPoints {
		observations += dp.Count
	}

	assert.Equal(t, uint64(2), observations)

	counter := findMetric(rm, observe.RequestsName)
	require.NotNil(t, counter)

	sum, ok := counter.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byStatus := map[string]int64{}

	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		byStatus[status.AsString()] += dp.Value
	}

	assert.Equal(t, int64(1), byStatus[observe.StatusOK])
	assert.Equal(t, int64(1), byStatus[observe.StatusError])
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, observe.DefaultMetrics(), observe.DefaultMetrics())
}
