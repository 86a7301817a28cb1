package dataprocessing

import (
	"context"
	"log/slog"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// KeepRows keeps the rows whose cell in column is one of allowed. A null
// allowed value matches null cells.
func (p *Processor) KeepRows(ctx context.Context, table *domain.Table, column string, allowed ...domain.Value) Result {
	const op = "keep_rows"

	col, ok := table.Column(column)
	if !ok {
		return p.fail(ctx, op, table, apperrors.NewSchemaError(op, []string{column}))
	}

	set := domain.NewValueSet(allowed...)
	out := table.FilterRows(func(row int) bool {
		return set.Contains(col.At(row))
	})

	dropped := table.NumRows() - out.NumRows()
	p.logger.InfoContext(ctx, "rows filtered",
		slog.String("column", column),
		slog.Int("kept", out.NumRows()),
		slog.Int("dropped", dropped))
	if dropped == 0 {
		return unchanged(table)
	}
	return applied(out)
}
