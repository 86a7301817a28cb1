package exporter

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// DBTX opens the transaction a load runs in.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresLoader copies tables into Postgres, mirroring the CSV overwrite rules
type PostgresLoader struct {
	db     DBTX
	schema string
	logger *slog.Logger
}

// NewPostgresLoader creates a loader writing into schema ("" uses the search path)
func NewPostgresLoader(db DBTX, schema string, logger *slog.Logger) *PostgresLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLoader{
		db:     db,
		schema: schema,
		logger: logger.With(slog.String("component", "postgres_loader")),
	}
}

func (l *PostgresLoader) identifier(name string) pgx.Identifier {
	if l.schema == "" {
		return pgx.Identifier{name}
	}
	return pgx.Identifier{l.schema, name}
}

// Load creates target if needed and copies every row into it. A target that
// already holds rows is left alone unless overwrite is set, in which case it
// is truncated first. All statements share one transaction, so a failed copy
// keeps the previous rows.
func (l *PostgresLoader) Load(ctx context.Context, table *domain.Table, target string, overwrite bool) SaveResult {
	ident := l.identifier(target)
	res := SaveResult{Path: ident.Sanitize(), Rows: table.NumRows()}

	var (
		copied  int64
		skipped bool
	)
	err := pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createTableSQL(ident, table)); err != nil {
			return apperrors.NewPersistenceError(res.Path, "failed to create table", err)
		}

		var populated bool
		if err := tx.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s)", ident.Sanitize())).Scan(&populated); err != nil {
			return apperrors.NewPersistenceError(res.Path, "failed to inspect table", err)
		}
		if populated {
			if !overwrite {
				skipped = true
				return nil
			}
			l.logger.WarnContext(ctx, "truncating populated table", slog.String("table", res.Path))
			if _, err := tx.Exec(ctx, "TRUNCATE "+ident.Sanitize()); err != nil {
				return apperrors.NewPersistenceError(res.Path, "failed to truncate table", err)
			}
		}

		n, err := tx.CopyFrom(ctx, ident, table.Columns(), pgx.CopyFromSlice(table.NumRows(), func(i int) ([]any, error) {
			return rowValues(table, i), nil
		}))
		if err != nil {
			return apperrors.NewPersistenceError(res.Path, "copy failed", err)
		}
		copied = n
		return nil
	})
	if err != nil {
		var appErr *apperrors.Error
		if !stderrors.As(err, &appErr) {
			err = apperrors.NewPersistenceError(res.Path, "transaction failed", err)
		}
		return l.failed(ctx, res, err)
	}

	if skipped {
		res.Status = SaveSkipped
		res.Err = apperrors.NewPersistenceError(res.Path, "table already has rows and overwrite is disabled", nil)
		l.logger.ErrorContext(ctx, "refusing to overwrite populated table", slog.String("table", res.Path))
		return res
	}

	l.logger.InfoContext(ctx, "table loaded",
		slog.String("table", res.Path),
		slog.Int64("rows", copied))
	res.Status = SaveWritten
	res.Rows = int(copied)
	return res
}

func (l *PostgresLoader) failed(ctx context.Context, res SaveResult, err error) SaveResult {
	l.logger.ErrorContext(ctx, "failed to load table",
		slog.String("table", res.Path),
		slog.String("error", err.Error()))
	res.Status = SaveFailed
	res.Err = err
	return res
}

// createTableSQL builds a CREATE TABLE IF NOT EXISTS statement typed from the columns
func createTableSQL(ident pgx.Identifier, table *domain.Table) string {
	defs := make([]string, table.NumColumns())
	for j := range defs {
		col := table.ColumnAt(j)
		defs[j] = pgx.Identifier{col.Name()}.Sanitize() + " " + sqlType(col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

func rowValues(table *domain.Table, i int) []any {
	row := make([]any, table.NumColumns())
	for j := range row {
		row[j] = cellValue(table.ColumnAt(j).At(i))
	}
	return row
}
