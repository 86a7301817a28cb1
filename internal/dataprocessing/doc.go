// Package dataprocessing cleans parsed tables: column projection, row
// filtering, missing-value resolution and date normalization.
//
// Every transform is a method on Processor, takes the table it works on and
// returns a Result holding a new table. Inputs are never mutated; unchanged
// columns are shared between the input and the output.
//
// # Failure model
//
// Transforms do not return errors. A transform that cannot run (an unknown
// column, a non-numeric column for a numeric strategy, an all-null column
// for mode or median) logs the failure and returns the input table with
// Status set to StatusFailed and Err set to a typed error from
// internal/errors. A transform with nothing to do returns StatusUnchanged.
//
// # Missing values
//
// Resolve compares a column's missing ratio with a threshold and only acts
// when the ratio is strictly greater:
//
//	p := dataprocessing.NewProcessor(logger)
//	res := p.Resolve(ctx, table, "region", 0.05, dataprocessing.MedianImpute)
//	if res.Status == dataprocessing.StatusFailed {
//	    // res.Table is the input table
//	}
//
// LinearInterpolation and MedianImpute need numeric columns. ModeImpute
// breaks ties by taking the smallest value.
//
// # Dates
//
// ParseDate reads day-first layouts before month-first ones. NormalizeColumn
// converts cell values; NormalizeColumnNames renames date-like column headers
// of wide tables to 2006-01-02 so they can be whitelisted with DateRangeNames.
package dataprocessing
