package dataprocessing

import (
	"context"
	"log/slog"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// maxLoggedColumns caps how many column names are written to the log
const maxLoggedColumns = 15

// Project keeps only the whitelisted columns, in the table's own order. If any
// whitelisted name is missing the table is returned unchanged.
func (p *Processor) Project(ctx context.Context, table *domain.Table, whitelist []string) Result {
	const op = "project"

	wanted := make(map[string]bool, len(whitelist))
	var missing []string
	for _, name := range whitelist {
		if wanted[name] {
			continue
		}
		wanted[name] = true
		if !table.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		p.logger.WarnContext(ctx, "whitelist names missing from table",
			slog.Any("missing", missing))
		return p.fail(ctx, op, table, apperrors.NewSchemaError(op, missing))
	}

	keep := make([]string, 0, len(wanted))
	for _, name := range table.Columns() {
		if wanted[name] {
			keep = append(keep, name)
		}
	}
	if len(keep) == table.NumColumns() {
		return unchanged(table)
	}

	out, err := table.Select(keep...)
	if err != nil {
		return p.fail(ctx, op, table, apperrors.NewTransformError(op, "select columns", err))
	}

	attrs := []any{
		slog.Int("dropped", table.NumColumns()-len(keep)),
		slog.Int("remaining", len(keep)),
	}
	if len(keep) < maxLoggedColumns {
		attrs = append(attrs, slog.Any("columns", keep))
	}
	p.logger.InfoContext(ctx, "columns projected", attrs...)
	return applied(out)
}
