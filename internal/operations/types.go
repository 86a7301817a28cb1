package operations

import (
	"time"
)

// Step types
const (
	StepProject              = "project"
	StepKeepRows             = "keep_rows"
	StepResolve              = "resolve"
	StepNormalizeDates       = "normalize_dates"
	StepNormalizeColumnNames = "normalize_column_names"
)

// Run stages timed in metrics and traces
const (
	StageFetch     = "fetch"
	StageParse     = "parse"
	StageTransform = "transform"
	StagePersist   = "persist"
)

// Source formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Persistence sinks
const (
	SinkCSV      = "csv"
	SinkPostgres = "postgres"
)

// RunStatus is the overall state of a dataset run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded means every step and sink succeeded or had nothing to do
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusDegraded means the run finished but a step or sink failed softly
	RunStatusDegraded RunStatus = "degraded"
	// RunStatusFailed means retrieval, parsing or cancellation stopped the run
	RunStatusFailed RunStatus = "failed"
)

// StepRecord is the outcome of one transform step
type StepRecord struct {
	Index         int           `json:"index"`
	Type          string        `json:"type"`
	Target        string        `json:"target,omitempty"`
	Status        string        `json:"status"`
	RowsBefore    int           `json:"rows_before"`
	RowsAfter     int           `json:"rows_after"`
	ColumnsBefore int           `json:"columns_before"`
	ColumnsAfter  int           `json:"columns_after"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// SaveRecord is the outcome of writing the final table to one sink
type SaveRecord struct {
	Sink   string `json:"sink"`
	Target string `json:"target"`
	Rows   int    `json:"rows"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunReport describes one dataset run from retrieval to persistence
type RunReport struct {
	ID           string       `json:"id"`
	Dataset      string       `json:"dataset"`
	TraceID      string       `json:"trace_id"`
	Status       RunStatus    `json:"status"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	RowsIngested int          `json:"rows_ingested"`
	RowsWritten  int          `json:"rows_written"`
	Steps        []StepRecord `json:"steps"`
	Saves        []SaveRecord `json:"saves"`
	Error        string       `json:"error,omitempty"`
}

// Duration is the elapsed run time, up to now for unfinished runs
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedSteps counts the steps that failed softly
func (r *RunReport) FailedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == "failed" {
			n++
		}
	}
	return n
}

// clone returns a copy that shares no slices with r
func (r *RunReport) clone() *RunReport {
	c := *r
	c.Steps = append([]StepRecord(nil), r.Steps...)
	c.Saves = append([]SaveRecord(nil), r.Saves...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
