package scoring

import (
	"sort"
	"strings"

	"github.com/zafarze/gat-sub000/internal/models"
)

// TableColumn is a subject header of the results table.
type TableColumn struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Questions   []int  `json:"questions"`
}

// TableCell holds one subject of one student. Answers follow the column's questions; nil
// marks a question the student has no answer for.
type TableCell struct {
	Answers    []*bool `json:"answers"`
	Correct    int     `json:"correct"`
	Percentage float64 `json:"percentage"`
	Grade      int     `json:"grade"`
}

// TableRow is one ranked student.
type TableRow struct {
	Position    int                  `json:"position"`
	ResultID    string               `json:"result_id"`
	StudentID   string               `json:"student_id"`
	StudentCode string               `json:"student_code"`
	Name        string               `json:"name"`
	ClassName   string               `json:"class_name"`
	SchoolName  string               `json:"school_name"`
	Subjects    map[string]TableCell `json:"subjects"`
	TotalScore  int                  `json:"total_score"`
	Percentage  float64              `json:"percentage"`
	Grade       int                  `json:"grade"`
	Placement   Placement            `json:"placement"`
}

// ResultsTable is the ranked table of one test.
type ResultsTable struct {
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

// TestResultsTable ranks the results of one test. cohort supplies the wider population for
// positions and placements and may be nil, in which case rows are ranked among themselves. Column
// questions run 1..expected for the test's class when configured, otherwise they are the
// union of question numbers present.
func TestResultsTable(rows, cohort []models.ResultRow, subjects []SubjectRef, testClassID string, expected ExpectedLookup, mode PercentMode) ResultsTable {
	expected = lookupOrNone(expected)
	subjects = subjectsOrDiscovered(sheetsOf(rows), subjects)
	if len(cohort) == 0 {
		cohort = rows
	}
	placements := Placements(cohort)

	table := ResultsTable{Columns: make([]TableColumn, 0, len(subjects)), Rows: make([]TableRow, 0, len(rows))}
	for _, subject := range subjects {
		table.Columns = append(table.Columns, TableColumn{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Questions:   columnQuestions(rows, subject.ID, expected.Expected(testClassID, subject.ID)),
		})
	}

	for _, row := range rows {
		tr := TableRow{
			ResultID:    row.ResultID,
			StudentID:   row.StudentID,
			StudentCode: row.StudentCode,
			Name:        row.StudentName(),
			ClassName:   row.ClassName,
			SchoolName:  row.SchoolName,
			Subjects:    make(map[string]TableCell, len(table.Columns)),
			TotalScore:  row.TotalScore,
			Placement:   placements[row.ResultID],
		}
		for _, col := range table.Columns {
			answers, ok := row.Scores[col.SubjectID]
			if !ok {
				continue
			}
			cell := TableCell{Answers: make([]*bool, len(col.Questions)), Correct: answers.Correct()}
			for i, q := range col.Questions {
				if v, ok := answers[q]; ok {
					v := v
					cell.Answers[i] = &v
				}
			}
			cell.Percentage = SubjectPercentage(answers, expected.Expected(row.ClassID, col.SubjectID), mode)
			cell.Grade = GradeFromPercentage(cell.Percentage)
			tr.Subjects[col.SubjectID] = cell
		}
		if pct, grade := SheetGrade(row.Scores, row.ClassID, expected); grade > 0 {
			tr.Percentage, tr.Grade = pct, grade
		} else if answered := row.Scores.Answered(); answered > 0 {
			tr.Percentage = Percentage(row.Scores.Total(), answered)
			tr.Grade = GradeFromPercentage(tr.Percentage)
		}
		table.Rows = append(table.Rows, tr)
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		if table.Rows[i].TotalScore != table.Rows[j].TotalScore {
			return table.Rows[i].TotalScore > table.Rows[j].TotalScore
		}
		return strings.ToLower(table.Rows[i].Name) < strings.ToLower(table.Rows[j].Name)
	})
	// positions come from the whole cohort, so a caller seeing a subset keeps real ranks
	totals := make([]int, len(cohort))
	for i, r := range cohort {
		totals[i] = r.TotalScore
	}
	for i := range table.Rows {
		table.Rows[i].Position = Rank(totals, table.Rows[i].TotalScore)
	}
	return table
}

func columnQuestions(rows []models.ResultRow, subjectID string, expected int) []int {
	seen := map[int]struct{}{}
	for q := 1; q <= expected; q++ {
		seen[q] = struct{}{}
	}
	for _, row := range rows {
		for q := range row.Scores[subjectID] {
			seen[q] = struct{}{}
		}
	}
	questions := make([]int, 0, len(seen))
	for q := range seen {
		questions = append(questions, q)
	}
	sort.Ints(questions)
	return questions
}
