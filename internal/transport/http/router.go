package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	customMiddleware "covidetl/internal/middleware"
	"covidetl/internal/operations"
)

// RouterConfig holds what the status router serves
type RouterConfig struct {
	Reports operations.ReportStore
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// NewRouter builds the status router.
// Middleware order: RequestID, RealIP, Tracing, Logger, Recoverer.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Tracing(cfg.Tracer, logger))
		r.Use(customMiddleware.StructuredLogger(logger))
		r.Use(customMiddleware.Recoverer(logger))

		r.Get("/healthz", Health)
		if cfg.Reports != nil {
			r.Mount("/runs", NewRunsHandler(cfg.Reports, logger).Routes())
		}
	})

	// outside the group so scrapes are not logged
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	return r
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Server runs the status router in the background
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server for handler on addr
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "status_server")),
	}
}

// Start listens in a goroutine. Listen errors other than a clean shutdown
// are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server stopped", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
