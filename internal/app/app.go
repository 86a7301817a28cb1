package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"covidetl/internal/config"
	"covidetl/internal/datasets"
	"covidetl/internal/exporter"
	"covidetl/internal/extraction"
	"covidetl/internal/infrastructure"
	"covidetl/internal/operations"
	handlers "covidetl/internal/transport/http"
	"covidetl/pkg/contracts"
)

// Options override configuration for a single invocation. Zero values keep
// the configured setting.
type Options struct {
	ConfigPath  string
	CatalogPath string
	Datasets    []string
	OutputDir   string
	Overwrite   bool

	// Logger replaces the global logger built from config
	Logger *slog.Logger
	// Source replaces the HTTP fetcher
	Source operations.Source
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Registry      *operations.Registry
	Manager       *operations.Manager
	Server        *handlers.Server

	pool *pgxpool.Pool
}

// NewApplication loads configuration and wires every component
func NewApplication(ctx context.Context, opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg, opts)

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if cfg.Logging.Output == "console" {
		paths.LogFile = ""
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	cfg.Output.Dir = paths.OutputDir
	if paths.LogFile != "" {
		cfg.Logging.FilePath = paths.LogFile
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = infrastructure.InitializeLogger(cfg.Logging); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	logger.Info("application starting",
		append([]any{slog.String("name", config.AppName)}, contracts.GetVersionInfo().LogAttrs()...)...)
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	if err := a.initializeRegistry(); err != nil {
		return nil, a.abort(ctx, err)
	}
	if err := a.initializeManager(ctx, opts.Source); err != nil {
		return nil, a.abort(ctx, err)
	}
	if cfg.Telemetry.MetricsAddr != "" {
		router := handlers.NewRouter(handlers.RouterConfig{
			Reports: a.Manager.Reports(),
			Metrics: providers.PrometheusHTTP,
			Tracer:  providers.Tracer,
			Logger:  logger,
		})
		a.Server = handlers.NewServer(cfg.Telemetry.MetricsAddr, router, logger)
	}
	return a, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.OutputDir != "" {
		cfg.Output.Dir = opts.OutputDir
	}
	if opts.Overwrite {
		cfg.Output.Overwrite = true
	}
	if opts.CatalogPath != "" {
		cfg.Pipeline.CatalogFile = opts.CatalogPath
	}
	if len(opts.Datasets) > 0 {
		cfg.Pipeline.Datasets = opts.Datasets
	}
}

// initializeRegistry registers the built-in datasets and the catalog, if any
func (a *Application) initializeRegistry() error {
	a.Registry = operations.NewRegistry()
	if err := datasets.Register(a.Registry, datasets.Builtin()); err != nil {
		return fmt.Errorf("failed to register built-in datasets: %w", err)
	}
	if a.Paths.CatalogFile == "" {
		return nil
	}
	specs, err := datasets.LoadCatalog(a.Paths.CatalogFile)
	if err != nil {
		return err
	}
	if err := datasets.Register(a.Registry, specs); err != nil {
		return fmt.Errorf("failed to register catalog datasets: %w", err)
	}
	a.Logger.Info("catalog loaded",
		slog.String("path", a.Paths.CatalogFile),
		slog.Int("datasets", len(specs)))
	return nil
}

// initializeManager builds the fetcher, the optional database sink and the
// manager
func (a *Application) initializeManager(ctx context.Context, source operations.Source) error {
	cfg := a.Config
	if source == nil {
		source = extraction.NewFetcher(a.Logger,
			extraction.WithRetryPolicy(extraction.RetryPolicy{
				MaxAttempts: cfg.Fetch.MaxAttempts,
				Delay:       cfg.Fetch.RetryDelay,
			}),
			extraction.WithRequestsPerMinute(cfg.Fetch.RequestsPerMinute),
			extraction.WithObserver(a.Metrics))
	}

	opts := []operations.Option{
		operations.WithConfig(operations.ConfigFrom(cfg)),
		operations.WithMetrics(a.Metrics),
		operations.WithTracer(a.OTelProviders.Tracer),
		operations.WithReportStore(operations.NewMemoryReportStore(cfg.Pipeline.ReportHistory)),
	}

	if cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.pool = pool
		opts = append(opts, operations.WithLoader(exporter.NewPostgresLoader(pool, cfg.Database.Schema, a.Logger)))
		a.Logger.Info("postgres sink enabled", slog.String("schema", cfg.Database.Schema))
	}

	a.Manager = operations.NewManager(source, nil, nil, a.Logger, opts...)
	return nil
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if db.MaxConns > 0 {
		poolCfg.MaxConns = db.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// Selected returns the datasets this invocation will run, in order
func (a *Application) Selected() ([]operations.DatasetSpec, error) {
	return a.Registry.Select(a.Config.Pipeline.Datasets...)
}

// Run starts the status server when configured and runs the selected
// datasets
func (a *Application) Run(ctx context.Context) ([]*operations.RunReport, error) {
	specs, err := a.Selected()
	if err != nil {
		return nil, err
	}
	if a.Server != nil {
		a.Server.Start()
	}

	ctx = infrastructure.ContextWithTraceID(ctx)
	a.Logger.InfoContext(ctx, "pipeline starting", slog.Int("datasets", len(specs)))
	reports, err := a.Manager.RunAll(ctx, specs)

	failed := 0
	for _, r := range reports {
		if r.Status == operations.RunStatusFailed {
			failed++
		}
	}
	a.Logger.InfoContext(ctx, "pipeline finished",
		slog.Int("runs", len(reports)),
		slog.Int("failed", failed))
	return reports, err
}

// Shutdown stops the status server, closes the database pool and flushes
// telemetry
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// abort releases what NewApplication built before failing
func (a *Application) abort(ctx context.Context, err error) error {
	if shutdownErr := a.Shutdown(ctx); shutdownErr != nil {
		a.Logger.Warn("cleanup after failed start", slog.String("error", shutdownErr.Error()))
	}
	return err
}
