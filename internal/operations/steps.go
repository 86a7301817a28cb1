package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"covidetl/internal/dataprocessing"
	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// runStep applies one step and records its outcome. The returned table is
// the step output, or the input when the step failed or did nothing.
func (m *Manager) runStep(ctx context.Context, dataset string, index int, step StepSpec, table *domain.Table) (*domain.Table, StepRecord) {
	start := time.Now()
	ctx, span := m.tracer.TraceStage(ctx, StageTransform,
		attribute.String("step.type", step.Type),
		attribute.Int("step.index", index))

	res := m.applyStep(ctx, step, table)

	rec := StepRecord{
		Index:         index,
		Type:          step.Type,
		Target:        step.Target(),
		Status:        string(res.Status),
		RowsBefore:    table.NumRows(),
		RowsAfter:     res.Table.NumRows(),
		ColumnsBefore: table.NumColumns(),
		ColumnsAfter:  res.Table.NumColumns(),
		Duration:      time.Since(start),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	m.tracer.EndSpan(span, res.Err)
	m.metrics.RecordStep(ctx, dataset, step.Type, rec.Status, rec.RowsBefore-rec.RowsAfter)
	m.logger.DebugContext(ctx, "step finished",
		slog.String("dataset", dataset),
		slog.Int("index", index),
		slog.String("type", step.Type),
		slog.String("status", rec.Status))
	return res.Table, rec
}

// applyStep dispatches a step to the processor
func (m *Manager) applyStep(ctx context.Context, step StepSpec, table *domain.Table) dataprocessing.Result {
	switch step.Type {
	case StepProject:
		whitelist := append([]string(nil), step.Columns...)
		if step.DateRange != nil {
			names, err := dataprocessing.ParseDateRange(step.DateRange.From, step.DateRange.To)
			if err != nil {
				return m.failed(ctx, table, apperrors.NewTransformError(StepProject, "invalid date range", err))
			}
			whitelist = append(whitelist, names...)
		}
		return m.processor.Project(ctx, table, whitelist)

	case StepKeepRows:
		return m.processor.KeepRows(ctx, table, step.Column, coerceValues(table, step.Column, step.Values)...)

	case StepResolve:
		strategy, err := step.ResolveStrategy()
		if err != nil {
			return m.failed(ctx, table, apperrors.NewTransformError(StepResolve, "invalid strategy", err))
		}
		if step.Column == "" {
			return m.processor.ResolveAll(ctx, table, step.Threshold, strategy)
		}
		return m.processor.Resolve(ctx, table, step.Column, step.Threshold, strategy)

	case StepNormalizeDates:
		order := dataprocessing.DayFirst
		if step.MonthFirst {
			order = dataprocessing.MonthFirst
		}
		return m.processor.NormalizeColumnOrdered(ctx, table, step.Column, order)

	case StepNormalizeColumnNames:
		return m.processor.NormalizeColumnNames(ctx, table)
	}
	return m.failed(ctx, table, apperrors.NewTransformError(step.Type, fmt.Sprintf("unknown step type %q", step.Type), nil))
}

// failed reports a step the processor never saw, logged like a processor failure
func (m *Manager) failed(ctx context.Context, table *domain.Table, err error) dataprocessing.Result {
	m.logger.ErrorContext(ctx, "step rejected, table left unchanged", slog.String("error", err.Error()))
	return dataprocessing.Result{Table: table, Status: dataprocessing.StatusFailed, Err: err}
}

// coerceValues converts configured filter values to the kind of column so a
// numeric column can be filtered with "2020"
func coerceValues(table *domain.Table, column string, values []string) []domain.Value {
	kind := domain.KindString
	if col, ok := table.Column(column); ok {
		if k, uniform := col.Kind(); uniform && k != domain.KindNull {
			kind = k
		}
	}
	out := make([]domain.Value, len(values))
	for i, v := range values {
		out[i] = domain.Coerce(v, kind)
	}
	return out
}
