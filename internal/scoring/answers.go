package scoring

import (
	"strconv"
	"strings"

	"github.com/zafarze/gat-sub000/internal/models"
)

// AnswerColumn is a parsed "ABBR_N" header.
type AnswerColumn struct {
	Index        int
	Abbreviation string
	Question     int
	SubjectID    string
}

// SubjectResolver maps an upper-cased abbreviation to a subject id.
type SubjectResolver func(abbreviation string) (string, bool)

// ParseAnswerColumn splits a header on its last underscore. The suffix must be a positive
// integer made of digits only.
func ParseAnswerColumn(header string) (AnswerColumn, bool) {
	header = strings.TrimSpace(header)
	idx := strings.LastIndex(header, "_")
	if idx <= 0 || idx == len(header)-1 {
		return AnswerColumn{}, false
	}
	abbr := strings.ToUpper(strings.TrimSpace(header[:idx]))
	suffix := header[idx+1:]
	if !isDigits(suffix) {
		return AnswerColumn{}, false
	}
	question, err := strconv.Atoi(suffix)
	if err != nil || question <= 0 || abbr == "" {
		return AnswerColumn{}, false
	}
	return AnswerColumn{Abbreviation: abbr, Question: question}, true
}

// PlanColumns resolves every answer column of a header row. Columns that do not parse or
// whose abbreviation is unknown are left out.
func PlanColumns(header []string, resolve SubjectResolver) []AnswerColumn {
	plan := make([]AnswerColumn, 0, len(header))
	for i, name := range header {
		col, ok := ParseAnswerColumn(name)
		if !ok {
			continue
		}
		subjectID, ok := resolve(col.Abbreviation)
		if !ok {
			continue
		}
		col.Index = i
		col.SubjectID = subjectID
		plan = append(plan, col)
	}
	return plan
}

// IsCorrect reports whether a cell holds a plain decimal equal to 1 ("1", "1.0", "01,00").
// Signs, exponents and hex forms are not answers.
func IsCorrect(cell string) bool {
	whole, frac, hasFrac := strings.Cut(strings.Replace(strings.TrimSpace(cell), ",", ".", 1), ".")
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return false
	}
	return strings.TrimLeft(whole, "0") == "1" && strings.Trim(frac, "0") == ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildScoreSheet builds the score sheet of one spreadsheet record.
func BuildScoreSheet(plan []AnswerColumn, record []string) models.ScoreSheet {
	sheet := models.ScoreSheet{}
	for _, col := range plan {
		value := ""
		if col.Index < len(record) {
			value = record[col.Index]
		}
		sheet.Set(col.SubjectID, col.Question, IsCorrect(value))
	}
	return sheet
}

// NormalizeStudentCode trims the code and drops a trailing ".0" left by numeric cells.
func NormalizeStudentCode(raw string) string {
	code := strings.TrimSpace(raw)
	idx := strings.LastIndex(code, ".")
	if idx <= 0 || idx == len(code)-1 {
		return code
	}
	for _, r := range code[idx+1:] {
		if r != '0' {
			return code
		}
	}
	return code[:idx]
}
