package dataprocessing

import (
	"context"
	"log/slog"

	"covidetl/pkg/contracts/domain"
)

// Status reports what a transform did
type Status string

const (
	// StatusApplied means a new table was produced
	StatusApplied Status = "applied"
	// StatusUnchanged means there was nothing to do; the input is returned
	StatusUnchanged Status = "unchanged"
	// StatusFailed means the transform failed softly; the input is returned and Err is set
	StatusFailed Status = "failed"
)

// Result is the outcome of a transform. Table is never nil when the input
// table was not nil.
type Result struct {
	Table  *domain.Table
	Status Status
	Err    error
}

// Processor applies table transforms. Transforms never mutate their input and
// never return an error for bad arguments: failures are logged and reported
// through Result.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a processor. A nil logger falls back to slog.Default().
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger.With(slog.String("component", "processor"))}
}

func applied(t *domain.Table) Result {
	return Result{Table: t, Status: StatusApplied}
}

func unchanged(t *domain.Table) Result {
	return Result{Table: t, Status: StatusUnchanged}
}

// fail logs err and returns the original table
func (p *Processor) fail(ctx context.Context, op string, t *domain.Table, err error) Result {
	p.logger.ErrorContext(ctx, "transform failed, table left unchanged",
		slog.String("op", op),
		slog.String("error", err.Error()))
	return Result{Table: t, Status: StatusFailed, Err: err}
}
