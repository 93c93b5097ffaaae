// Package ingest parses inspection workbooks into unit records.
package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

var (
	statusHeaders = []string{"status", "estado", "calificacion", "calificación"}
	unitHeaders   = []string{"unit", "unit_id", "unidad", "id"}
	defectHeaders = []string{"defect", "defecto", "observacion", "observación"}
)

// ParseWorkbook reads the first sheet of an xlsx inspection file. The first
// row is the header and must contain a status column; blank rows are skipped.
func ParseWorkbook(r io.Reader) ([]models.UnitRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w: %w", models.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", models.ErrInvalidInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []models.UnitRecord{}, nil
	}

	header := rows[0]
	statusCol := columnIndex(header, statusHeaders)
	if statusCol < 0 {
		return nil, fmt.Errorf("sheet %s has no status column: %w", sheets[0], models.ErrInvalidInput)
	}
	unitCol := columnIndex(header, unitHeaders)
	defectCol := columnIndex(header, defectHeaders)

	records := make([]models.UnitRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		status := cell(row, statusCol)
		if status == "" && isBlank(row) {
			continue
		}

		unitID := cell(row, unitCol)
		if unitID == "" {
			unitID = fmt.Sprintf("row-%d", i+2)
		}

		records = append(records, models.UnitRecord{
			UnitID: unitID,
			Status: status,
			Defect: cell(row, defectCol),
		})
	}
	return records, nil
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		for _, name := range names {
			if normalized == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
