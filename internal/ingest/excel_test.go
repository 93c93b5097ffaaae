package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseWorkbook(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Unidad", "Peso", "Estado", "Defecto"},
		{"U1", 210, "OK", ""},
		{"U2", 190, "alerta", "roce"},
		{},
		{"", 180, "DESCARTE", "golpe"},
	})

	got, err := ParseWorkbook(buf)
	require.NoError(t, err)
	assert.Equal(t, []models.UnitRecord{
		{UnitID: "U1", Status: "OK"},
		{UnitID: "U2", Status: "alerta", Defect: "roce"},
		{UnitID: "row-5", Status: "DESCARTE", Defect: "golpe"},
	}, got)
}

func TestParseWorkbookHeaderOnly(t *testing.T) {
	got, err := ParseWorkbook(workbook(t, [][]any{{"status"}}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseWorkbookRequiresStatusColumn(t *testing.T) {
	_, err := ParseWorkbook(workbook(t, [][]any{{"unit", "weight"}, {"U1", 10}}))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ParseWorkbook(bytes.NewBufferString("not a workbook"))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
