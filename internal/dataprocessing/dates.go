package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// dayFirstLayouts are tried before monthFirstLayouts, so 03/04/2020 reads as
// 3 April. ISO forms are unambiguous and live in the first list.
var dayFirstLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02:01:2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2/1/06",
	"2 January 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 02 2006",
}

var monthFirstLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	"1/2/06",
}

// DateOrder selects how ambiguous numeric dates such as 03/04/2020 are read
type DateOrder int

const (
	// DayFirst reads 03/04/2020 as 3 April
	DayFirst DateOrder = iota
	// MonthFirst reads 03/04/2020 as 4 March
	MonthFirst
)

// ParseDate reads s as a calendar date, day-first, falling back to
// month-first layouts. Bare numbers such as years are not dates.
func ParseDate(s string) (time.Time, bool) {
	return ParseDateOrdered(s, DayFirst)
}

// ParseDateOrdered is ParseDate with the preferred order for ambiguous dates
func ParseDateOrdered(s string, order DateOrder) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || isDigits(s) {
		return time.Time{}, false
	}
	groups := [][]string{dayFirstLayouts, monthFirstLayouts}
	if order == MonthFirst {
		groups = [][]string{monthFirstLayouts, dayFirstLayouts}
	}
	for _, layouts := range groups {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// toDate converts a cell to a date value, or null when it cannot be read as one
func toDate(v domain.Value, order DateOrder) domain.Value {
	switch v.Kind() {
	case domain.KindDate:
		return v
	case domain.KindString:
		s, _ := v.Text()
		if t, ok := ParseDateOrdered(s, order); ok {
			return domain.Date(t)
		}
	}
	return domain.Null()
}

// NormalizeColumn converts every cell of column to a date, day-first. Cells
// that cannot be read as a date become null.
func (p *Processor) NormalizeColumn(ctx context.Context, table *domain.Table, column string) Result {
	return p.NormalizeColumnOrdered(ctx, table, column, DayFirst)
}

// NormalizeColumnOrdered is NormalizeColumn with an explicit order for
// ambiguous dates, for sources that write M/D/Y
func (p *Processor) NormalizeColumnOrdered(ctx context.Context, table *domain.Table, column string, order DateOrder) Result {
	const op = "normalize_dates"

	col, ok := table.Column(column)
	if !ok {
		return p.fail(ctx, op, table, apperrors.NewSchemaError(op, []string{column}))
	}

	values := col.Values()
	unparsed := 0
	for i, v := range values {
		values[i] = toDate(v, order)
		if values[i].IsNull() && !v.IsNull() {
			unparsed++
		}
	}

	out, err := table.WithColumn(column, values)
	if err != nil {
		return p.fail(ctx, op, table, apperrors.NewTransformError(op, "replace column", err))
	}
	level := slog.LevelInfo
	if unparsed > 0 {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "date column normalized",
		slog.String("column", column),
		slog.Int("unparsed", unparsed))
	return applied(out)
}

// NormalizeColumnNames renames columns whose names read as dates to the
// canonical 2006-01-02 form. A rename that collides with another column
// leaves the table unchanged.
func (p *Processor) NormalizeColumnNames(ctx context.Context, table *domain.Table) Result {
	const op = "normalize_column_names"

	renames := make(map[string]string)
	for _, name := range table.Columns() {
		if t, ok := ParseDate(name); ok {
			if canonical := t.Format(domain.DateLayout); canonical != name {
				renames[name] = canonical
			}
		}
	}
	if len(renames) == 0 {
		return unchanged(table)
	}

	out, err := table.Rename(renames)
	if err != nil {
		return p.fail(ctx, op, table, apperrors.NewTransformError(op, "rename would duplicate a column", err))
	}
	p.logger.InfoContext(ctx, "date column names normalized",
		slog.Int("renamed", len(renames)))
	return applied(out)
}

// DateRangeNames returns canonical day names from from to to inclusive
func DateRangeNames(from, to time.Time) []string {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	var names []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		names = append(names, d.Format(domain.DateLayout))
	}
	return names
}

// ParseDateRange parses two dates with ParseDate and returns DateRangeNames
func ParseDateRange(from, to string) ([]string, error) {
	start, ok := ParseDate(from)
	if !ok {
		return nil, fmt.Errorf("invalid range start %q", from)
	}
	end, ok := ParseDate(to)
	if !ok {
		return nil, fmt.Errorf("invalid range end %q", to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	return DateRangeNames(start, end), nil
}
