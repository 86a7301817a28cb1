package http

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "covidetl/internal/errors"
	"covidetl/internal/operations"
)

// defaultRunLimit caps GET /runs when no limit is given
const defaultRunLimit = 20

// RunsHandler exposes stored run reports
type RunsHandler struct {
	reports operations.ReportStore
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler
func NewRunsHandler(reports operations.ReportStore, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		reports: reports,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// Routes sets up the run routes
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)
	return r
}

// RunListResponse is the body of GET /runs
type RunListResponse struct {
	Count int                     `json:"count"`
	Runs  []*operations.RunReport `json:"runs"`
}

// ListRuns handles GET /runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			render.Render(w, r, apperrors.BadRequestError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs := h.reports.List(limit)
	if runs == nil {
		runs = []*operations.RunReport{}
	}
	render.JSON(w, r, RunListResponse{Count: len(runs), Runs: runs})
}

// GetRun handles GET /runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := h.reports.Get(id)
	if err != nil {
		if stderrors.Is(err, operations.ErrReportNotFound) {
			render.Render(w, r, apperrors.NotFoundError("run "+id))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load run report",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.ErrInternalServer)
		return
	}
	render.JSON(w, r, report)
}
