// Package scoring turns raw answer cells into score sheets and derives every aggregate the
// reports show: percentages, grades, ranks, comparisons, difficulty and distributions.
// Functions are pure and treat an empty population as zero values.
package scoring

import (
	"math"
	"strings"

	"github.com/zafarze/gat-sub000/internal/models"
)

// PercentMode selects the denominator of subject percentages.
type PercentMode string

const (
	// PercentAnswered divides by the number of answered questions.
	PercentAnswered PercentMode = "answered"
	// PercentExpected divides by the class's expected question count when one is configured.
	PercentExpected PercentMode = "expected"
)

// ParsePercentMode falls back to PercentAnswered for unknown values.
func ParsePercentMode(raw string) PercentMode {
	if PercentMode(strings.ToLower(strings.TrimSpace(raw))) == PercentExpected {
		return PercentExpected
	}
	return PercentAnswered
}

// Percentage returns correct/total*100 rounded to one decimal, or 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(correct) * 100 / float64(total))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// GradeFromPercentage maps a percentage onto the 10-point grade scale.
func GradeFromPercentage(p float64) int {
	switch {
	case p >= 95:
		return 10
	case p >= 85:
		return 9
	case p >= 75:
		return 8
	case p >= 65:
		return 7
	case p >= 55:
		return 6
	case p >= 45:
		return 5
	case p >= 35:
		return 4
	case p >= 25:
		return 3
	case p >= 15:
		return 2
	default:
		return 1
	}
}

// SubjectPercentage computes the percentage of one subject's answers.
func SubjectPercentage(answers models.SubjectAnswers, expected int, mode PercentMode) float64 {
	denominator := answers.Answered()
	if mode == PercentExpected && expected > 0 {
		denominator = expected
	}
	return Percentage(answers.Correct(), denominator)
}

// TotalScore sums correct answers across every subject of the sheet.
func TotalScore(sheet models.ScoreSheet) int {
	return sheet.Total()
}

// SheetGrade grades the whole sheet against the maximum score, the sum of expected counts of
// the subjects present. It returns 0 when no maximum is known.
func SheetGrade(sheet models.ScoreSheet, classID string, expected ExpectedLookup) (float64, int) {
	expected = lookupOrNone(expected)
	max := 0
	for subjectID := range sheet {
		max += expected.Expected(classID, subjectID)
	}
	if max == 0 {
		return 0, 0
	}
	p := Percentage(sheet.Total(), max)
	return p, GradeFromPercentage(p)
}
