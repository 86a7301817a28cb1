package operations

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound is returned when a dataset name is not registered
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when registering a name twice
	ErrDatasetExists = errors.New("dataset already registered")

	// ErrReportNotFound is returned when a run report cannot be found
	ErrReportNotFound = errors.New("run report not found")
)

// RunError wraps the error that stopped a dataset run
type RunError struct {
	Dataset string
	RunID   string
	Stage   string
	Cause   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("dataset %s run %s failed during %s: %v", e.Dataset, e.RunID, e.Stage, e.Cause)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Cause
}
