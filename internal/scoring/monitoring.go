package scoring

import (
	"sort"
	"strings"

	"github.com/zafarze/gat-sub000/internal/models"
)

// MonitoringRow is one student of the monitoring matrix. Values holds either the correct
// count or the grade per subject depending on the mode.
type MonitoringRow struct {
	Position   int            `json:"position"`
	StudentID  string         `json:"student_id"`
	Name       string         `json:"name"`
	ClassName  string         `json:"class_name"`
	SchoolName string         `json:"school_name"`
	Values     map[string]int `json:"values"`
	Total      int            `json:"total"`
	Tests      int            `json:"tests"`
}

// MonitoringReport is the student by subject matrix across the selected tests.
type MonitoringReport struct {
	Grading  bool            `json:"grading"`
	Subjects []SubjectRef    `json:"subjects"`
	Rows     []MonitoringRow `json:"rows"`
}

// MonitoringMatrix combines every result of a student across tests. In score mode each cell
// is the summed correct count and Total their sum. In grading mode each cell is the grade of
// the combined answers and Total the sum of grades.
func MonitoringMatrix(rows []models.ResultRow, subjects []SubjectRef, expected ExpectedLookup, mode PercentMode, grading bool) MonitoringReport {
	expected = lookupOrNone(expected)
	subjects = subjectsOrDiscovered(sheetsOf(rows), subjects)

	type tally struct{ correct, answered, expected int }
	type acc struct {
		row      MonitoringRow
		subjects map[string]*tally
	}
	byStudent := map[string]*acc{}
	order := make([]string, 0)
	for _, row := range rows {
		a, ok := byStudent[row.StudentID]
		if !ok {
			a = &acc{
				row:      MonitoringRow{StudentID: row.StudentID, Name: row.StudentName(), ClassName: row.ClassName, SchoolName: row.SchoolName},
				subjects: map[string]*tally{},
			}
			byStudent[row.StudentID] = a
			order = append(order, row.StudentID)
		}
		a.row.Tests++
		for _, subject := range subjects {
			answers, ok := row.Scores[subject.ID]
			if !ok {
				continue
			}
			t, ok := a.subjects[subject.ID]
			if !ok {
				t = &tally{}
				a.subjects[subject.ID] = t
			}
			t.correct += answers.Correct()
			t.answered += answers.Answered()
			t.expected += expected.Expected(row.ClassID, subject.ID)
		}
	}

	report := MonitoringReport{Grading: grading, Subjects: subjects, Rows: make([]MonitoringRow, 0, len(order))}
	for _, id := range order {
		a := byStudent[id]
		a.row.Values = make(map[string]int, len(a.subjects))
		for subjectID, t := range a.subjects {
			value := t.correct
			if grading {
				if t.answered == 0 {
					continue
				}
				denominator := t.answered
				if mode == PercentExpected && t.expected > 0 {
					denominator = t.expected
				}
				value = GradeFromPercentage(Percentage(t.correct, denominator))
			}
			a.row.Values[subjectID] = value
			a.row.Total += value
		}
		report.Rows = append(report.Rows, a.row)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		if report.Rows[i].Total != report.Rows[j].Total {
			return report.Rows[i].Total > report.Rows[j].Total
		}
		return strings.ToLower(report.Rows[i].Name) < strings.ToLower(report.Rows[j].Name)
	})
	totals := make([]int, len(report.Rows))
	for i, row := range report.Rows {
		totals[i] = row.Total
	}
	for i := range report.Rows {
		report.Rows[i].Position = Rank(totals, report.Rows[i].Total)
	}
	return report
}
