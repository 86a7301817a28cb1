package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	runIDKey
)

// contextFields lists the IDs the log handler copies from a context onto
// every record.
var contextFields = []struct {
	key  ctxKey
	attr string
}{
	{traceIDKey, "trace_id"},
	{runIDKey, "run_id"},
}

func idFrom(ctx context.Context, key ctxKey) string {
	id, _ := ctx.Value(key).(string)
	return id
}

// WithTraceID tags ctx with a trace ID. A batch of runs shares one.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID in ctx, or "".
func GetTraceID(ctx context.Context) string { return idFrom(ctx, traceIDKey) }

// WithRunID tags ctx with the ID of a single dataset run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID returns the run ID in ctx, or "".
func GetRunID(ctx context.Context) string { return idFrom(ctx, runIDKey) }

// GenerateTraceID returns a random UUID v4 trace ID
func GenerateTraceID() string {
	return uuid.New().String()
}

// GenerateRunID returns a random UUID v4 run ID
func GenerateRunID() string {
	return uuid.NewString()
}

// ContextWithTraceID sets a fresh trace ID, replacing any existing one
func ContextWithTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, GenerateTraceID())
}

// EnsureTraceID keeps an existing trace ID and sets a fresh one otherwise
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return ContextWithTraceID(ctx)
}

// StartRun tags ctx for one dataset run: it keeps the caller's trace ID (or
// sets one) and adds a new run ID, which it returns
func StartRun(ctx context.Context) (context.Context, string) {
	runID := GenerateRunID()
	return WithRunID(EnsureTraceID(ctx), runID), runID
}
