package extraction

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// ParseOptions controls delimited text parsing
type ParseOptions struct {
	Separator  rune
	SkipRows   int
	NullValues []string // extra tokens read as null besides the empty field
}

// DefaultParseOptions returns comma-separated parsing with no skipped rows
func DefaultParseOptions() ParseOptions {
	return ParseOptions{Separator: ',', SkipRows: 0}
}

// Parse turns delimited text into a table. The first line after SkipRows is
// the header. Columns whose non-null cells are all numeric become numbers.
func Parse(raw string, opts ParseOptions) (*domain.Table, error) {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	rest, err := skipLines(raw, opts.SkipRows)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(rest))
	r.Comma = opts.Separator
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if stderrors.Is(err, io.EOF) {
		return nil, apperrors.NewParseError("input has no header row", nil)
	}
	if err != nil {
		return nil, apperrors.NewParseError("malformed header row", err)
	}
	header = append([]string(nil), header...)

	var rows [][]string
	for {
		record, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParseError("malformed row", err)
		}
		if len(record) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, apperrors.NewParseError(
				fmt.Sprintf("line %d has %d fields, header has %d", line+opts.SkipRows, len(record), len(header)), nil)
		}
		rows = append(rows, record)
	}

	return buildTable(header, rows, opts.NullValues)
}

// skipLines drops the first n lines of raw
func skipLines(raw string, n int) (string, error) {
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(raw, '\n')
		if idx < 0 {
			return "", apperrors.NewParseError(
				fmt.Sprintf("input has fewer than %d lines to skip", n+1), nil)
		}
		raw = raw[idx+1:]
	}
	return raw, nil
}

// buildTable types each column and assembles the table. Short rows are
// padded with nulls; callers reject long rows.
func buildTable(header []string, rows [][]string, nullValues []string) (*domain.Table, error) {
	names := uniqueNames(header)

	nulls := make(map[string]struct{}, len(nullValues)+1)
	nulls[""] = struct{}{}
	for _, v := range nullValues {
		nulls[v] = struct{}{}
	}

	columns := make([][]domain.Value, len(names))
	for j := range names {
		raw := make([]string, len(rows))
		isNull := make([]bool, len(rows))
		numeric := true
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			}
			if _, ok := nulls[raw[i]]; ok {
				isNull[i] = true
				continue
			}
			if numeric {
				if _, ok := domain.ParseNumber(raw[i]); !ok {
					numeric = false
				}
			}
		}

		values := make([]domain.Value, len(rows))
		for i := range rows {
			switch {
			case isNull[i]:
				values[i] = domain.Null()
			case numeric:
				f, _ := domain.ParseNumber(raw[i])
				values[i] = domain.Number(f)
			default:
				values[i] = domain.String(raw[i])
			}
		}
		columns[j] = values
	}

	table, err := domain.NewTable(names, columns)
	if err != nil {
		return nil, apperrors.NewParseError("cannot assemble table", err)
	}
	return table, nil
}

// uniqueNames fills empty header cells and de-duplicates repeated names as
// name.1, name.2, ...
func uniqueNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int)
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			counts[h]++
			name = h + "." + strconv.Itoa(counts[h])
		}
		used[name] = true
		names[i] = name
	}
	return names
}
