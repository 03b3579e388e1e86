package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single-sheet workbook. Numeric cells are written as
// numbers so spreadsheet formulas work on them.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return ".xlsx" }

// Render writes the title row (when set), the bold header row and the data rows.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	rowNum := 1
	if data.Title != "" {
		if err := f.SetCellValue(defaultSheet, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("xlsx title: %w", err)
		}
		if err := f.SetCellStyle(defaultSheet, "A1", "A1", bold); err != nil {
			return nil, fmt.Errorf("xlsx title style: %w", err)
		}
		rowNum = 3
	}

	headerCells := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerCells[i] = h
	}
	if err := writeRow(f, rowNum, headerCells); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, rowNum)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), rowNum)
	if err := f.SetCellStyle(defaultSheet, first, last, bold); err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}

	for _, row := range data.Rows {
		rowNum++
		record := data.Record(row)
		cells := make([]interface{}, len(record))
		for i, value := range record {
			cells[i] = cellValue(value)
		}
		if err := writeRow(f, rowNum, cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetSheetRow(defaultSheet, cell, &cells); err != nil {
		return fmt.Errorf("xlsx row %d: %w", rowNum, err)
	}
	return nil
}

func cellValue(value string) interface{} {
	if n, err := strconv.Atoi(value); err == nil && len(value) < 10 {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && len(value) < 10 {
		return f
	}
	return value
}
