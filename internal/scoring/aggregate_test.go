package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/models"
)

var (
	q1Start = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	q2Start = time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
)

func sheetOf(subject string, flags ...bool) models.ScoreSheet {
	sheet := models.ScoreSheet{}
	for i, ok := range flags {
		sheet.Set(subject, i+1, ok)
	}
	return sheet
}

func row(id, student, class, school string, sheet models.ScoreSheet) models.ResultRow {
	return models.ResultRow{
		ResultID:     id,
		StudentID:    student,
		FirstName:    student,
		LastName:     "Student",
		ClassID:      class,
		ClassName:    class,
		SchoolID:     school,
		SchoolName:   "School " + school,
		QuarterID:    "q1",
		QuarterName:  "Q1",
		QuarterStart: q1Start,
		Scores:       sheet,
		TotalScore:   sheet.Total(),
	}
}

func TestQuestionDifficultyAndProblematic(t *testing.T) {
	sheets := []models.ScoreSheet{
		sheetOf("math", true, false, true, false),
		sheetOf("math", true, false, false, true),
		sheetOf("math", true, true, false, false),
	}
	stats := QuestionDifficulty(sheets, []SubjectRef{{ID: "math", Name: "Math"}, {ID: "bio", Name: "Biology"}})
	require.Len(t, stats, 2)

	math := stats[0]
	assert.Equal(t, []QuestionStat{
		{Question: 1, Correct: 3, Total: 3, Percentage: 100},
		{Question: 2, Correct: 1, Total: 3, Percentage: 33.3},
		{Question: 3, Correct: 1, Total: 3, Percentage: 33.3},
		{Question: 4, Correct: 1, Total: 3, Percentage: 33.3},
	}, math.Questions)
	assert.Equal(t, 50.0, math.Percentage)
	assert.Empty(t, stats[1].Questions)

	problems := ProblematicQuestions(stats, 0, 2)
	require.Len(t, problems, 2)
	assert.Equal(t, 2, problems[0].Question)
	assert.Equal(t, 3, problems[1].Question)

	assert.Empty(t, ProblematicQuestions(stats, 30, 3))

	board := SubjectLeaderboard(stats)
	require.Len(t, board, 1)
	assert.Equal(t, "Math", board[0].SubjectName)
}

func TestGradeDistribution(t *testing.T) {
	rows := []models.ResultRow{
		row("r1", "a", "10A", "s1", sheetOf("math", true, true, true, true)),
		row("r2", "b", "10A", "s1", sheetOf("math", true, false, false, false)),
		row("r3", "c", "10B", "s1", sheetOf("math", true, true, true, true)),
		row("r4", "d", "10B", "s1", models.ScoreSheet{}),
	}
	report := GradeDistribution(rows, []SubjectRef{{ID: "math", Name: "Math"}}, nil, PercentAnswered)

	require.Len(t, report.Subjects, 1)
	math := report.Subjects[0]
	assert.Equal(t, 3, math.Students)
	assert.Equal(t, 2, math.Total[10])
	assert.Equal(t, 1, math.Total[3])
	require.Len(t, math.Classes, 2)
	assert.Equal(t, "10A", math.Classes[0].ClassName)
	assert.Equal(t, 1, math.Classes[0].Counts[10])
	assert.Equal(t, 1, math.Classes[0].Counts[3])
	assert.Equal(t, 3, report.Students)
	assert.Equal(t, 2, report.Summary[10])

	empty := GradeDistribution(nil, nil, nil, PercentAnswered)
	assert.Empty(t, empty.Subjects)
	assert.Zero(t, empty.Students)
}

func TestScoreDistribution(t *testing.T) {
	bins := ScoreDistribution([]int{0, 9, 10, 55, 109, 150, -3})
	require.Len(t, bins, 11)
	assert.Equal(t, "0-9", bins[0].Label)
	assert.Equal(t, 3, bins[0].Count)
	assert.Equal(t, 1, bins[1].Count)
	assert.Equal(t, 1, bins[5].Count)
	assert.Equal(t, "100-109", bins[10].Label)
	assert.Equal(t, 2, bins[10].Count)
}

func TestDeepAnalysis(t *testing.T) {
	rows := []models.ResultRow{
		row("r1", "a", "10A", "s1", sheetOf("math", true, true, true, true)),
		row("r2", "b", "10A", "s1", sheetOf("math", true, true, false, false)),
		row("r3", "c", "10A", "s2", sheetOf("math", true, false, false, false)),
	}
	rows[2].QuarterID, rows[2].QuarterName, rows[2].QuarterStart = "q2", "Q2", q2Start

	report := DeepAnalysis(rows, []SubjectRef{{ID: "math", Name: "Math"}}, 3, 40)

	assert.Equal(t, []string{"Math"}, report.Summary.Labels)
	require.Len(t, report.Summary.Datasets, 3)
	assert.Equal(t, "School s1", report.Summary.Datasets[0].Label)
	assert.Equal(t, 75.0, *report.Summary.Datasets[0].Data[0])
	assert.Equal(t, AverageOfAllLabel, report.Summary.Datasets[2].Label)
	assert.InDelta(t, 58.3, *report.Summary.Datasets[2].Data[0], 0.01)

	require.Len(t, report.Heatmaps, 1)
	summary := report.Heatmaps[0].Summary
	assert.Equal(t, []int{1, 2, 3, 4}, report.Heatmaps[0].Questions)
	assert.Equal(t, 1, summary.Easiest[0].Question)
	assert.Len(t, summary.Hardest, 3)
	assert.Equal(t, "School s1", summary.Ranking[0].SchoolName)
	assert.Equal(t, 50.0, summary.Gap)

	require.Len(t, report.Problematic["Math"], 3)
	assert.Equal(t, 0.0, report.Problematic["Math"][0].Percentage)

	require.NotNil(t, report.Trend)
	assert.Equal(t, []string{"Q1", "Q2"}, report.Trend.Labels)
	assert.Equal(t, 75.0, *report.Trend.Datasets[0].Data[0])
	assert.Equal(t, 25.0, *report.Trend.Datasets[0].Data[1])

	require.Len(t, report.AtRisk, 1)
	assert.Equal(t, "c", report.AtRisk[0].StudentID)
	assert.Equal(t, 25.0, report.AtRisk[0].Average)
}

func TestDeepAnalysisEmpty(t *testing.T) {
	report := DeepAnalysis(nil, nil, 3, 40)
	assert.Empty(t, report.Heatmaps)
	assert.Nil(t, report.Trend)
	assert.Empty(t, report.AtRisk)
}

func TestTrendNeedsTwoQuarters(t *testing.T) {
	rows := []models.ResultRow{row("r1", "a", "10A", "s1", sheetOf("math", true))}
	assert.Nil(t, Trend(rows, nil))
}

func TestMonitoringMatrix(t *testing.T) {
	day1 := row("r1", "a", "10A", "s1", sheetOf("math", true, true, false, false))
	day2 := row("r2", "a", "10A", "s1", sheetOf("math", true, true, true, true))
	other := row("r3", "b", "10A", "s1", sheetOf("math", true, true, true, true))
	subjects := []SubjectRef{{ID: "math", Name: "Math"}}

	scores := MonitoringMatrix([]models.ResultRow{day1, day2, other}, subjects, nil, PercentAnswered, false)
	require.Len(t, scores.Rows, 2)
	assert.Equal(t, "a", scores.Rows[0].StudentID)
	assert.Equal(t, 6, scores.Rows[0].Total)
	assert.Equal(t, 2, scores.Rows[0].Tests)
	assert.Equal(t, 2, scores.Rows[1].Position)

	grades := MonitoringMatrix([]models.ResultRow{day1, day2, other}, subjects, nil, PercentAnswered, true)
	assert.Equal(t, "b", grades.Rows[0].StudentID)
	assert.Equal(t, 10, grades.Rows[0].Values["math"])
	assert.Equal(t, 8, grades.Rows[1].Values["math"])
}

func TestSubjectResultsBestWorst(t *testing.T) {
	sheet := sheetOf("math", true, true, true, false)
	for i, ok := range []bool{true, false, false, false} {
		sheet.Set("eng", i+1, ok)
	}
	results := SubjectResults(sheet, []SubjectRef{{ID: "math", Name: "Math"}, {ID: "eng", Name: "English"}, {ID: "bio", Name: "Biology"}}, "10A", nil, PercentAnswered)
	require.Len(t, results, 2)

	best, worst := BestWorstSubject(results)
	assert.Equal(t, "Math", best.SubjectName)
	assert.Equal(t, 8, best.Grade)
	assert.Equal(t, "English", worst.SubjectName)

	best, worst = BestWorstSubject(nil)
	assert.Nil(t, best)
	assert.Nil(t, worst)
}

func TestTestResultsTable(t *testing.T) {
	a := row("r1", "a", "10A", "s1", sheetOf("math", true, false, true))
	b := row("r2", "b", "10A", "s1", sheetOf("math", true, true, true))
	c := row("r3", "c", "10B", "s1", sheetOf("math", true, false, true))
	expected := NewExpectedTable()
	expected.Set("10", "math", 4)
	expected.SetParent("10A", "10")
	expected.SetParent("10B", "10")

	table := TestResultsTable([]models.ResultRow{a, b, c}, nil, []SubjectRef{{ID: "math", Name: "Math"}}, "10", expected, PercentExpected)

	require.Len(t, table.Columns, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, table.Columns[0].Questions)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "b", table.Rows[0].StudentID)
	assert.Equal(t, 1, table.Rows[0].Position)
	assert.Equal(t, 2, table.Rows[1].Position)
	assert.Equal(t, 2, table.Rows[2].Position)

	cell := table.Rows[0].Subjects["math"]
	require.Len(t, cell.Answers, 4)
	assert.True(t, *cell.Answers[1])
	assert.Nil(t, cell.Answers[3])
	assert.Equal(t, 75.0, cell.Percentage)
	assert.Equal(t, 8, table.Rows[0].Grade)
	assert.Equal(t, 3, table.Rows[0].Placement.SchoolSize)
}

func TestTestResultsTablePositionUsesCohort(t *testing.T) {
	a := row("r1", "a", "10A", "s1", sheetOf("math", true, true, true))
	b := row("r2", "b", "10A", "s1", sheetOf("math", true, true, false))
	c := row("r3", "c", "10B", "s1", sheetOf("math", true, false, false))

	table := TestResultsTable([]models.ResultRow{c}, []models.ResultRow{a, b, c}, nil, "10", nil, PercentAnswered)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "c", table.Rows[0].StudentID)
	assert.Equal(t, 3, table.Rows[0].Position)
	assert.Equal(t, 3, table.Rows[0].Placement.SchoolRank)
}
