// Package exporter persists cleaned tables.
//
// CSVWriter.Save writes <dir>/<name>.csv with a header row and no index
// column. It refuses to replace an existing file unless overwrite is set,
// never creates directories, and reports failures through SaveResult
// instead of returning them:
//
//	res := exporter.NewCSVWriter(logger).Save(ctx, table, "chile", "data", false)
//	if res.Status != exporter.SaveWritten {
//	    // res.Err carries a persistence error
//	}
//
// PostgresLoader is the optional database sink. It creates the target table
// from the column kinds, applies the same overwrite rule to populated tables
// and bulk loads rows with COPY.
package exporter
