package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPipelineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFetchAttempt(ctx, "http://example.test/a.csv", 1, errors.New("reset"))
	m.RecordFetchAttempt(ctx, "http://example.test/a.csv", 2, nil)
	m.RecordRowsIngested(ctx, "usa", 1000)
	m.RecordStep(ctx, "usa", "keep_rows", "applied", 100)
	m.RecordStep(ctx, "usa", "resolve", "unchanged", 0)
	m.RecordSave(ctx, "usa", "csv", "written")
	m.RecordRun(ctx, "usa", "succeeded")
	m.RecordStageDuration(ctx, "usa", "fetch", 250*time.Millisecond)

	data := collect(t, reader)
	assert.EqualValues(t, 2, sumOf(t, data["etl_fetch_attempts"]))
	assert.EqualValues(t, 1000, sumOf(t, data["etl_rows_ingested"]))
	assert.EqualValues(t, 100, sumOf(t, data["etl_rows_dropped"]))
	assert.EqualValues(t, 2, sumOf(t, data["etl_transforms"]))
	assert.EqualValues(t, 1, sumOf(t, data["etl_saves"]))
	assert.EqualValues(t, 1, sumOf(t, data["etl_runs"]))

	hist, ok := data["etl_stage_duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
}

func TestPipelineMetricsNoop(t *testing.T) {
	m, err := NewPipelineMetrics(nil)
	require.NoError(t, err)
	m.RecordRowsIngested(context.Background(), "chile", 5)

	var nilMetrics *PipelineMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordRun(context.Background(), "chile", "failed")
		nilMetrics.RecordFetchAttempt(context.Background(), "", 1, nil)
	})
}
