package operations

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	TracerName = "covidetl.operations"
)

// OperationTracer creates the spans of a dataset run
type OperationTracer struct {
	tracer trace.Tracer
}

// NewOperationTracer wraps tracer. A nil tracer yields no-op spans.
func NewOperationTracer(tracer trace.Tracer) *OperationTracer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(TracerName)
	}
	return &OperationTracer{tracer: tracer}
}

// TraceRun starts the root span of a dataset run
func (ot *OperationTracer) TraceRun(ctx context.Context, runID, dataset string) (context.Context, trace.Span) {
	return ot.tracer.Start(ctx, "etl.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("dataset", dataset),
		),
	)
}

// TraceStage starts a span for one stage of a run
func (ot *OperationTracer) TraceStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ot.tracer.Start(ctx, fmt.Sprintf("etl.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, if any, and ends it
func (ot *OperationTracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
