package spreadsheet

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDate = regexp.MustCompile(`(\d{4})[_-](\d{1,2})[_-](\d{1,2})`)

// cell layouts excelize produces for date formatted cells, plus the common manual forms
var cellDateLayouts = []string{"2006-01-02", "2006/01/02", "02.01.2006", "01-02-06", "1/2/06", "1/2/2006"}

var dateHeaderKeywords = []string{"date", "time", "дата", "время"}

// DetectDate finds the date a test was taken. A YYYY-MM-DD (or underscore separated) date in
// the filename wins; otherwise the first data row of the first sheet is searched under a
// header naming a date.
func DetectDate(filename string, workbook *Workbook) (time.Time, bool) {
	if d, ok := parseISODate(filename); ok {
		return d, true
	}
	if workbook == nil {
		return time.Time{}, false
	}
	for _, sheet := range workbook.Sheets {
		if len(sheet.Header) == 0 {
			continue
		}
		if len(sheet.Rows) == 0 {
			return time.Time{}, false
		}
		for i, header := range sheet.Header {
			if !dateHeader(header) {
				continue
			}
			if d, ok := parseCellDate(Cell(sheet.Rows[0], i)); ok {
				return d, true
			}
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

func dateHeader(header string) bool {
	lower := strings.ToLower(header)
	for _, keyword := range dateHeaderKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func parseISODate(s string) (time.Time, bool) {
	m := isoDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject dates time.Date would normalise, such as 2024-02-31
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func parseCellDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if d, ok := parseISODate(value); ok {
		return d, true
	}
	for _, layout := range cellDateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
