package exporter

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// SaveStatus reports what a save did
type SaveStatus string

const (
	SaveWritten SaveStatus = "written"
	SaveSkipped SaveStatus = "skipped"
	SaveFailed  SaveStatus = "failed"
)

// SaveResult is the outcome of persisting a table. Save never returns an
// error directly: failures are logged and carried here.
type SaveResult struct {
	Path   string
	Rows   int
	Status SaveStatus
	Err    error
}

// CSVWriter persists tables as CSV files
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer. A nil logger falls back to slog.Default().
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// Save writes table to dir/fileName.csv with a header row and no index
// column. An existing file is only replaced when overwrite is set. The
// directory must already exist.
func (w *CSVWriter) Save(ctx context.Context, table *domain.Table, fileName, dir string, overwrite bool) SaveResult {
	path := TargetPath(dir, fileName)
	res := SaveResult{Path: path, Rows: table.NumRows()}

	if err := ctx.Err(); err != nil {
		return w.failed(ctx, res, apperrors.NewPersistenceError(path, "save cancelled", err))
	}

	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			res.Status = SaveSkipped
			res.Err = apperrors.NewPersistenceError(path, "file already exists and overwrite is disabled", os.ErrExist)
			w.logger.ErrorContext(ctx, "refusing to overwrite existing file",
				slog.String("path", path))
			return res
		}
		w.logger.WarnContext(ctx, "overwriting existing file",
			slog.String("path", path))
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if stderrors.Is(err, os.ErrExist) {
			res.Status = SaveSkipped
			res.Err = apperrors.NewPersistenceError(path, "file already exists and overwrite is disabled", err)
			w.logger.ErrorContext(ctx, "refusing to overwrite existing file", slog.String("path", path))
			return res
		}
		return w.failed(ctx, res, apperrors.NewPersistenceError(path, "failed to open file", err))
	}

	if err := writeTable(file, table); err != nil {
		file.Close()
		return w.failed(ctx, res, apperrors.NewPersistenceError(path, "failed to write file", err))
	}
	if err := file.Close(); err != nil {
		return w.failed(ctx, res, apperrors.NewPersistenceError(path, "failed to close file", err))
	}

	w.logger.InfoContext(ctx, "table saved",
		slog.String("path", path),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", table.NumColumns()))
	res.Status = SaveWritten
	return res
}

func (w *CSVWriter) failed(ctx context.Context, res SaveResult, err error) SaveResult {
	w.logger.ErrorContext(ctx, "failed to save table",
		slog.String("path", res.Path),
		slog.String("error", err.Error()))
	res.Status = SaveFailed
	res.Err = err
	return res
}

// writeTable encodes the header and every row
func writeTable(out io.Writer, table *domain.Table) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(table.Header()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i := 0; i < table.NumRows(); i++ {
		if err := writer.Write(formatRow(table, i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
