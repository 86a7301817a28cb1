package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// PipelineMetrics holds the ETL instruments
type PipelineMetrics struct {
	FetchAttempts metric.Int64Counter
	RowsIngested  metric.Int64Counter
	RowsDropped   metric.Int64Counter
	Transforms    metric.Int64Counter
	Saves         metric.Int64Counter
	Runs          metric.Int64Counter
	StageDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the instruments on meter. A nil meter yields
// no-op instruments.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	fetchAttempts, err := meter.Int64Counter(
		"etl_fetch_attempts",
		metric.WithDescription("Download attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	rowsIngested, err := meter.Int64Counter(
		"etl_rows_ingested",
		metric.WithDescription("Rows parsed from retrieved payloads"),
	)
	if err != nil {
		return nil, err
	}

	rowsDropped, err := meter.Int64Counter(
		"etl_rows_dropped",
		metric.WithDescription("Rows removed by transform steps"),
	)
	if err != nil {
		return nil, err
	}

	transforms, err := meter.Int64Counter(
		"etl_transforms",
		metric.WithDescription("Transform steps by status"),
	)
	if err != nil {
		return nil, err
	}

	saves, err := meter.Int64Counter(
		"etl_saves",
		metric.WithDescription("Persist attempts by status"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"etl_runs",
		metric.WithDescription("Dataset runs by status"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"etl_stage_duration",
		metric.WithDescription("Stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		FetchAttempts: fetchAttempts,
		RowsIngested:  rowsIngested,
		RowsDropped:   rowsDropped,
		Transforms:    transforms,
		Saves:         saves,
		Runs:          runs,
		StageDuration: stageDuration,
	}, nil
}

// RecordFetchAttempt counts one download attempt
func (m *PipelineMetrics) RecordFetchAttempt(ctx context.Context, url string, attempt int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.FetchAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("retry", attempt > 1),
	))
}

// RecordRowsIngested counts parsed rows for a dataset
func (m *PipelineMetrics) RecordRowsIngested(ctx context.Context, dataset string, rows int) {
	if m == nil {
		return
	}
	m.RowsIngested.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("dataset", dataset)))
}

// RecordStep counts one transform step and the rows it removed
func (m *PipelineMetrics) RecordStep(ctx context.Context, dataset, step, status string, rowsDropped int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("dataset", dataset),
		attribute.String("step", step),
	}
	m.Transforms.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
	if rowsDropped > 0 {
		m.RowsDropped.Add(ctx, int64(rowsDropped), metric.WithAttributes(attrs...))
	}
}

// RecordSave counts one persist attempt
func (m *PipelineMetrics) RecordSave(ctx context.Context, dataset, sink, status string) {
	if m == nil {
		return
	}
	m.Saves.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("sink", sink),
		attribute.String("status", status),
	))
}

// RecordRun counts one finished dataset run
func (m *PipelineMetrics) RecordRun(ctx context.Context, dataset, status string) {
	if m == nil {
		return
	}
	m.Runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("status", status),
	))
}

// RecordStageDuration records how long a stage of a run took
func (m *PipelineMetrics) RecordStageDuration(ctx context.Context, dataset, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("stage", stage),
	))
}
