// Package spreadsheet reads uploaded result workbooks into plain string grids.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for extensions the reader does not understand.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Sheet is one worksheet. Header holds the trimmed cells of the first non-empty row; Rows
// holds the following non-blank rows and Lines their 1-based row numbers in the source.
// Rows may be shorter than Header.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
	Lines  []int
}

// Line returns the source row number of Rows[i].
func (s Sheet) Line(i int) int {
	if i >= 0 && i < len(s.Lines) {
		return s.Lines[i]
	}
	return i + 2
}

// Workbook is every sheet of a file in document order.
type Workbook struct {
	Sheets []Sheet
}

// Column returns the index of the first header matching one of names case-insensitively,
// or -1.
func (s Sheet) Column(names ...string) int {
	for _, name := range names {
		for i, h := range s.Header {
			if strings.EqualFold(h, name) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the trimmed value at index or "" when the row is short.
func Cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

// Extension returns the lower-cased extension of filename including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Read parses the content according to the file extension.
func Read(filename string, r io.Reader) (*Workbook, error) {
	switch Extension(filename) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// ReadXLSX reads every worksheet of an Office Open XML workbook.
func ReadXLSX(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, newSheet(name, rows))
	}
	return wb, nil
}

// ReadCSV reads a single-sheet CSV file. Semicolon separated files exported by spreadsheet
// tools in comma-decimal locales are detected from the header line.
func ReadCSV(r io.Reader) (*Workbook, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	firstLine, _ := br.Peek(peekSize(br))

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = detectDelimiter(firstLine)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return &Workbook{Sheets: []Sheet{newSheet("CSV", rows)}}, nil
}

func peekSize(br *bufio.Reader) int {
	if n := br.Buffered(); n > 0 {
		return n
	}
	_, _ = br.Peek(1)
	return br.Buffered()
}

func detectDelimiter(sample []byte) rune {
	if idx := bytes.IndexByte(sample, '\n'); idx >= 0 {
		sample = sample[:idx]
	}
	if bytes.Count(sample, []byte{';'}) > bytes.Count(sample, []byte{','}) {
		return ';'
	}
	return ','
}

func newSheet(name string, rows [][]string) Sheet {
	sheet := Sheet{Name: name}
	start := -1
	for i, row := range rows {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return sheet
	}
	sheet.Header = make([]string, len(rows[start]))
	for i, cell := range rows[start] {
		sheet.Header[i] = strings.TrimSpace(cell)
	}
	for i, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
		sheet.Lines = append(sheet.Lines, start+i+2)
	}
	return sheet
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
