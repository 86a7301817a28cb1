package operations

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"covidetl/internal/config"
	"covidetl/internal/dataprocessing"
	"covidetl/internal/exporter"
	"covidetl/internal/extraction"
	"covidetl/internal/infrastructure"
	"covidetl/pkg/contracts/domain"
)

// Source retrieves raw dataset payloads
type Source interface {
	Fetch(ctx context.Context, req extraction.Request) (string, error)
	FetchBytes(ctx context.Context, req extraction.Request) ([]byte, error)
}

// Saver persists a table as a file
type Saver interface {
	Save(ctx context.Context, table *domain.Table, fileName, dir string, overwrite bool) exporter.SaveResult
}

// Loader persists a table into a database table
type Loader interface {
	Load(ctx context.Context, table *domain.Table, target string, overwrite bool) exporter.SaveResult
}

// Manager runs datasets through retrieval, transforms and persistence
type Manager struct {
	source    Source
	processor *dataprocessing.Processor
	writer    Saver
	loader    Loader
	store     ReportStore
	metrics   *infrastructure.PipelineMetrics
	tracer    *OperationTracer
	config    *Config
	logger    *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLoader adds a database sink for datasets that name an output table
func WithLoader(l Loader) Option {
	return func(m *Manager) { m.loader = l }
}

// WithReportStore replaces the default in-memory report store
func WithReportStore(s ReportStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithMetrics records pipeline metrics
func WithMetrics(pm *infrastructure.PipelineMetrics) Option {
	return func(m *Manager) { m.metrics = pm }
}

// WithTracer creates run spans on tracer
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = NewOperationTracer(t) }
}

// WithConfig replaces the default configuration
func WithConfig(cfg *Config) Option {
	return func(m *Manager) {
		if cfg != nil {
			m.config = cfg
		}
	}
}

// NewManager creates a manager. A nil processor or writer gets a default
// built on logger; a nil logger falls back to slog.Default().
func NewManager(source Source, processor *dataprocessing.Processor, writer Saver, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if processor == nil {
		processor = dataprocessing.NewProcessor(logger)
	}
	if writer == nil {
		writer = exporter.NewCSVWriter(logger)
	}
	m := &Manager{
		source:    source,
		processor: processor,
		writer:    writer,
		store:     NewMemoryReportStore(config.DefaultReportHistory),
		tracer:    NewOperationTracer(nil),
		config:    NewConfig(),
		logger:    logger.With(slog.String("component", "manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reports returns the store holding finished run reports
func (m *Manager) Reports() ReportStore {
	return m.store
}

// Run retrieves, transforms and persists one dataset. Retrieval, parse and
// cancellation errors stop the run and are returned; transform and
// persistence failures are recorded in the report and the run goes on.
// The report is returned in both cases.
func (m *Manager) Run(ctx context.Context, spec DatasetSpec) (*RunReport, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx, runID := infrastructure.StartRun(ctx)
	report := &RunReport{
		ID:        runID,
		Dataset:   spec.Name,
		TraceID:   infrastructure.GetTraceID(ctx),
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
		Steps:     make([]StepRecord, 0, len(spec.Steps)),
	}

	ctx, span := m.tracer.TraceRun(ctx, runID, spec.Name)
	logger := m.logger.With(slog.String("dataset", spec.Name))
	logger.InfoContext(ctx, "run started",
		slog.String("url", spec.Source.URL),
		slog.Int("steps", len(spec.Steps)))

	table, stage, err := m.extract(ctx, spec)
	if err != nil {
		return m.finish(ctx, span, report, stage, err)
	}
	report.RowsIngested = table.NumRows()
	m.metrics.RecordRowsIngested(ctx, spec.Name, table.NumRows())

	for i, step := range spec.Steps {
		if err := ctx.Err(); err != nil {
			return m.finish(ctx, span, report, StageTransform, err)
		}
		var rec StepRecord
		table, rec = m.runStep(ctx, spec.Name, i, step, table)
		report.Steps = append(report.Steps, rec)
	}

	if err := ctx.Err(); err != nil {
		return m.finish(ctx, span, report, StagePersist, err)
	}
	m.persist(ctx, spec, table, report)

	return m.finish(ctx, span, report, "", nil)
}

// RunAll runs specs one after another. When ContinueOnError is off the first
// failing dataset stops the batch. Errors are joined.
func (m *Manager) RunAll(ctx context.Context, specs []DatasetSpec) ([]*RunReport, error) {
	reports := make([]*RunReport, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := m.Run(ctx, spec)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, err)
			if !m.config.ContinueOnError {
				m.logger.WarnContext(ctx, "stopping after failed dataset",
					slog.String("dataset", spec.Name),
					slog.Int("remaining", len(specs)-len(reports)))
				break
			}
		}
	}
	return reports, stderrors.Join(errs...)
}

// extract fetches and parses the source. It returns the stage that failed.
func (m *Manager) extract(ctx context.Context, spec DatasetSpec) (*domain.Table, string, error) {
	src := spec.Source
	req := extraction.Request{
		URL:            src.URL,
		ConnectTimeout: m.config.connectTimeout(src),
		ReadTimeout:    m.config.readTimeout(src),
		Archive:        src.Archive,
	}

	var (
		text  string
		raw   []byte
		err   error
		start = time.Now()
	)
	fetchCtx, span := m.tracer.TraceStage(ctx, StageFetch, attribute.String("url", src.URL))
	if src.Format == FormatXLSX {
		raw, err = m.source.FetchBytes(fetchCtx, req)
	} else {
		text, err = m.source.Fetch(fetchCtx, req)
	}
	m.tracer.EndSpan(span, err)
	m.metrics.RecordStageDuration(ctx, spec.Name, StageFetch, time.Since(start))
	if err != nil {
		return nil, StageFetch, err
	}

	var table *domain.Table
	start = time.Now()
	_, span = m.tracer.TraceStage(ctx, StageParse, attribute.String("format", formatOf(src)))
	if src.Format == FormatXLSX {
		table, err = extraction.ParseWorkbook(raw, extraction.WorkbookOptions{
			Sheet:      src.Sheet,
			SkipRows:   src.SkipRows,
			NullValues: src.NullValues,
		})
	} else {
		table, err = extraction.Parse(text, extraction.ParseOptions{
			Separator:  src.SeparatorRune(),
			SkipRows:   src.SkipRows,
			NullValues: src.NullValues,
		})
	}
	m.tracer.EndSpan(span, err)
	m.metrics.RecordStageDuration(ctx, spec.Name, StageParse, time.Since(start))
	if err != nil {
		return nil, StageParse, err
	}

	m.logger.InfoContext(ctx, "dataset loaded",
		slog.String("dataset", spec.Name),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", table.NumColumns()))
	return table, "", nil
}

// persist writes table to the CSV sink and, when configured, the database
func (m *Manager) persist(ctx context.Context, spec DatasetSpec, table *domain.Table, report *RunReport) {
	start := time.Now()
	ctx, span := m.tracer.TraceStage(ctx, StagePersist)
	defer func() {
		span.End()
		m.metrics.RecordStageDuration(ctx, spec.Name, StagePersist, time.Since(start))
	}()

	overwrite := spec.Output.Overwrite || m.config.Overwrite
	res := m.writer.Save(ctx, table, spec.Output.FileName, m.config.outputDir(spec.Output), overwrite)
	m.recordSave(ctx, report, SinkCSV, res)

	if m.loader != nil && spec.Output.Table != "" {
		res = m.loader.Load(ctx, table, spec.Output.Table, overwrite)
		m.recordSave(ctx, report, SinkPostgres, res)
	}
}

func (m *Manager) recordSave(ctx context.Context, report *RunReport, sink string, res exporter.SaveResult) {
	rec := SaveRecord{
		Sink:   sink,
		Target: res.Path,
		Rows:   res.Rows,
		Status: string(res.Status),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		infrastructure.RecordError(ctx, res.Err)
	}
	if res.Status == exporter.SaveWritten && sink == SinkCSV {
		report.RowsWritten = res.Rows
	}
	report.Saves = append(report.Saves, rec)
	m.metrics.RecordSave(ctx, report.Dataset, sink, rec.Status)
}

// finish settles the report status, stores it and ends the run span
func (m *Manager) finish(ctx context.Context, span trace.Span, report *RunReport, stage string, err error) (*RunReport, error) {
	now := time.Now()
	report.FinishedAt = &now

	if err != nil {
		err = &RunError{Dataset: report.Dataset, RunID: report.ID, Stage: stage, Cause: err}
		report.Status = RunStatusFailed
		report.Error = err.Error()
	} else {
		report.Status = RunStatusSucceeded
		if report.FailedSteps() > 0 {
			report.Status = RunStatusDegraded
		}
		for _, s := range report.Saves {
			if s.Status == string(exporter.SaveFailed) {
				report.Status = RunStatusDegraded
			}
		}
	}

	span.SetAttributes(attribute.String("run.status", string(report.Status)))
	m.tracer.EndSpan(span, err)
	m.metrics.RecordRun(ctx, report.Dataset, string(report.Status))

	if storeErr := m.store.Save(report); storeErr != nil {
		m.logger.WarnContext(ctx, "failed to store run report", slog.String("error", storeErr.Error()))
	}

	attrs := []any{
		slog.String("dataset", report.Dataset),
		slog.String("status", string(report.Status)),
		slog.Int("rows_ingested", report.RowsIngested),
		slog.Int("rows_written", report.RowsWritten),
		slog.Int("failed_steps", report.FailedSteps()),
		slog.Duration("duration", report.Duration()),
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "run failed", append(attrs,
			slog.String("stage", stage),
			slog.String("error", err.Error()))...)
	} else {
		m.logger.InfoContext(ctx, "run finished", attrs...)
	}
	return report, err
}

func formatOf(src SourceSpec) string {
	if src.Format == "" {
		return FormatCSV
	}
	return src.Format
}

// String summarises a report for CLI output
func (r *RunReport) String() string {
	return fmt.Sprintf("%-12s %-9s rows %d -> %d  steps %d (failed %d)  %s",
		r.Dataset, r.Status, r.RowsIngested, r.RowsWritten, len(r.Steps), r.FailedSteps(),
		r.Duration().Round(time.Millisecond))
}
