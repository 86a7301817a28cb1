package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// WorkbookOptions selects the sheet and leading rows to skip in an xlsx payload
type WorkbookOptions struct {
	Sheet      string // empty selects the first sheet
	SkipRows   int
	NullValues []string
}

// ParseWorkbook reads one sheet of an xlsx payload into a table, applying the
// same header, null and number rules as Parse. Fully empty rows are skipped.
func ParseWorkbook(raw []byte, opts WorkbookOptions) (*domain.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewDecodeError("payload is not a readable workbook", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParseError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("cannot read sheet %q", sheet), err)
	}
	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(rows) {
			return nil, apperrors.NewParseError(
				fmt.Sprintf("sheet %q has fewer than %d rows to skip", sheet, opts.SkipRows+1), nil)
		}
		rows = rows[opts.SkipRows:]
	}

	var header []string
	var data [][]string
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		if len(row) > len(header) {
			return nil, apperrors.NewParseError(
				fmt.Sprintf("sheet %q row %d has %d cells, header has %d", sheet, i+opts.SkipRows+1, len(row), len(header)), nil)
		}
		data = append(data, row)
	}
	if header == nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("sheet %q has no header row", sheet), nil)
	}

	return buildTable(header, data, opts.NullValues)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
