package extraction

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "covidetl/internal/errors"
	"covidetl/pkg/contracts/domain"
)

// workbookPayload builds an in-memory xlsx with the given rows on one sheet
func workbookPayload(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	payload := workbookPayload(t, "Deaths", [][]interface{}{
		{"Source: ministry"},
		{"nombre", "17-03-2020", "18-03-2020"},
		{"Nacional", 1, 2},
		{"Aguascalientes", 0, nil},
	})

	table, err := ParseWorkbook(payload, WorkbookOptions{SkipRows: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"nombre", "17-03-2020", "18-03-2020"}, table.Columns())
	assert.Equal(t, 2, table.NumRows())

	v, _ := table.Cell(0, "18-03-2020")
	assert.True(t, v.Equal(domain.Number(2)))
	assert.Equal(t, 1, table.NullCount("18-03-2020"))
}

func TestParseWorkbookErrors(t *testing.T) {
	_, err := ParseWorkbook([]byte("not a workbook"), WorkbookOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrDecode))

	payload := workbookPayload(t, "Sheet1", [][]interface{}{{"a"}, {1}})
	_, err = ParseWorkbook(payload, WorkbookOptions{Sheet: "missing"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))

	_, err = ParseWorkbook(payload, WorkbookOptions{SkipRows: 10})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))
}
