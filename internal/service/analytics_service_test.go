package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

// mathRow builds a result whose math answers are correct for the first `correct` of three
// questions.
func mathRow(resultID, studentID, classID, gatTestID string, correct int) models.ResultRow {
	sheet := models.ScoreSheet{}
	for q := 1; q <= 3; q++ {
		sheet.Set(mathID, q, q <= correct)
	}
	return models.ResultRow{
		ResultID:      resultID,
		StudentID:     studentID,
		StudentCode:   "code-" + studentID,
		FirstName:     "Name",
		LastName:      studentID,
		ClassID:       classID,
		ClassName:     classID,
		ClassParentID: strRef(baseClass),
		SchoolID:      schoolID,
		SchoolName:    "School 1",
		GatTestID:     gatTestID,
		TestName:      gatTestID,
		TestDate:      day("2024-10-10"),
		QuarterID:     quarterID,
		Scores:        sheet,
		TotalScore:    sheet.Total(),
	}
}

func newAnalytics(f *gatFixture) *AnalyticsService {
	f.classes.classes["class-10A"] = models.SchoolClass{ID: "class-10A", SchoolID: schoolID, Name: "10A", ParentID: strRef(baseClass)}
	f.classes.classes["class-10B"] = models.SchoolClass{ID: "class-10B", SchoolID: schoolID, Name: "10B", ParentID: strRef(baseClass)}
	f.results.rows = []models.ResultRow{
		mathRow("r1", "stu-a", "class-10A", testID, 3),
		mathRow("r2", "stu-b", "class-10B", testID, 2),
		mathRow("r3", "stu-c", "class-10A", testID, 1),
	}
	return NewAnalyticsService(f.registry, f.catalog, f.results, f.subjects, f.cacheSvc, AnalyticsConfig{}, nil)
}

func TestTestResultsRanksAgainstWholeCohort(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)

	scope := models.AccessScope{SchoolIDs: []string{schoolID}, StudentID: "stu-b"}
	report, err := svc.TestResults(context.Background(), scope, testID)
	require.NoError(t, err)
	require.Len(t, report.Table.Rows, 1)

	row := report.Table.Rows[0]
	assert.Equal(t, "stu-b", row.StudentID)
	assert.Equal(t, 2, row.TotalScore)
	assert.Equal(t, 2, row.Placement.SchoolRank)
	assert.Equal(t, 3, row.Placement.SchoolSize)
	assert.Equal(t, 1, row.Placement.ClassRank)
	assert.Equal(t, 1, row.Placement.ClassSize)
	assert.Equal(t, 2, row.Placement.ParallelRank)
}

func TestTestResultsServedFromCache(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)
	ctx := context.Background()

	first, err := svc.TestResults(ctx, schoolScope(), testID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.results.lists)

	second, err := svc.TestResults(ctx, schoolScope(), testID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.results.lists)
	assert.Equal(t, len(first.Table.Rows), len(second.Table.Rows))

	_, err = svc.TestResults(ctx, models.FullAccess(), testID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.results.lists, "another scope is another cache entry")

	f.cacheSvc.InvalidateReports(ctx)
	_, err = svc.TestResults(ctx, schoolScope(), testID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.results.lists)
}

func TestTestResultsOutsideScope(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)

	_, err := svc.TestResults(context.Background(), models.AccessScope{SchoolIDs: []string{otherID}}, testID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestComparisonOfTwoDays(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)
	ctx := context.Background()

	day1 := f.tests.tests[testID]
	day1.Day = intRef(1)
	f.tests.tests[testID] = day1
	day2 := day1
	day2.ID = "test-2"
	day2.Day = intRef(2)
	f.tests.tests["test-2"] = day2
	f.results.rows = append(f.results.rows,
		mathRow("r4", "stu-a", "class-10A", "test-2", 1),
		mathRow("r5", "stu-d", "class-10B", "test-2", 3),
	)

	_, err := svc.Comparison(ctx, schoolScope(), testID, testID)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	resp, err := svc.Comparison(ctx, schoolScope(), testID, "test-2")
	require.NoError(t, err)
	assert.True(t, resp.Combined)
	assert.Equal(t, 4, resp.Report.Stats.TotalStudents)
	assert.Equal(t, 1, resp.Report.Stats.ParticipatedBoth)

	byStudent := map[string]int{}
	for _, row := range resp.Report.Rows {
		byStudent[row.StudentID] = row.Total
	}
	assert.Equal(t, 4, byStudent["stu-a"])
	assert.Equal(t, 3, byStudent["stu-d"])

	narrowed, err := svc.Comparison(ctx, models.AccessScope{SchoolIDs: []string{schoolID}, StudentID: "stu-d"}, testID, "test-2")
	require.NoError(t, err)
	require.Len(t, narrowed.Report.Rows, 1)
	assert.Equal(t, "stu-d", narrowed.Report.Rows[0].StudentID)
}

func TestDashboard(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)
	done := f.tests.tests[testID]
	done.ResultCount = 3
	f.tests.tests[testID] = done
	pending := done
	pending.ID = "test-2"
	pending.ResultCount = 0
	f.tests.tests["test-2"] = pending

	report, err := svc.Dashboard(context.Background(), schoolScope(), dto.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.Students)
	assert.Equal(t, 1, report.Stats.Tests)
	assert.Equal(t, 3, report.Stats.Results)
	require.Len(t, report.TopStudents, 3)
	assert.Equal(t, "stu-a", report.TopStudents[0].StudentID)
	assert.Equal(t, 100.0, report.TopStudents[0].Percentage)
	require.Len(t, report.TestsWithoutResult, 1)
	assert.Equal(t, "test-2", report.TestsWithoutResult[0].ID)
}

func TestStudentProgress(t *testing.T) {
	f := newGatFixture()
	svc := newAnalytics(f)
	f.students.byCode["code-stu-b"] = models.Student{ID: "stu-b", StudentCode: "code-stu-b", ClassID: "class-10B"}
	f.students.schoolOf["stu-b"] = schoolID

	report, err := svc.StudentProgress(context.Background(), schoolScope(), "stu-b")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	progress := report.Results[0]
	assert.Equal(t, testID, progress.GatTestID)
	assert.Equal(t, 2, progress.TotalScore)
	assert.Equal(t, 2, progress.Placement.SchoolRank)
	require.Len(t, progress.Subjects, 1)
	assert.Equal(t, mathID, progress.Subjects[0].SubjectID)

	_, err = svc.StudentProgress(context.Background(), models.AccessScope{SchoolIDs: []string{schoolID}, StudentID: "stu-a"}, "stu-b")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
