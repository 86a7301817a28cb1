package exporter

import (
	"path/filepath"

	"covidetl/pkg/contracts/domain"
)

// csvExtension is appended to every target file name
const csvExtension = ".csv"

// TargetPath returns dir/fileName.csv. An empty dir means the working directory.
func TargetPath(dir, fileName string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fileName+csvExtension)
}

// formatRow renders row i: nulls are empty, numbers use the shortest exact
// form and dates use 2006-01-02
func formatRow(table *domain.Table, i int) []string {
	record := make([]string, table.NumColumns())
	for j := range record {
		record[j] = table.ColumnAt(j).At(i).String()
	}
	return record
}

// cellValue converts a cell to the Go value a database driver expects
func cellValue(v domain.Value) any {
	switch v.Kind() {
	case domain.KindNumber:
		f, _ := v.Float()
		return f
	case domain.KindDate:
		t, _ := v.Time()
		return t
	case domain.KindString:
		s, _ := v.Text()
		return s
	default:
		return nil
	}
}

// sqlType maps a column to a Postgres type. Mixed or all-null columns are text.
func sqlType(col *domain.Column) string {
	kind, ok := col.Kind()
	if !ok {
		return "text"
	}
	switch kind {
	case domain.KindNumber:
		return "double precision"
	case domain.KindDate:
		return "date"
	default:
		return "text"
	}
}
