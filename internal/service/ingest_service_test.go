package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/pkg/config"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

func newIngest(f *gatFixture, metrics *MetricsService) *IngestService {
	return NewIngestService(IngestDeps{
		Tests:    f.registry,
		Catalog:  f.catalog,
		Students: f.students,
		Results:  f.results,
		Tx:       f.tx,
		Cache:    f.cacheSvc,
		Metrics:  metrics,
	}, config.IngestConfig{}, nil)
}

func upload(t *testing.T, svc *IngestService, scope models.AccessScope, filename, body string) (*models.IngestSummary, error) {
	t.Helper()
	return svc.Upload(context.Background(), scope, testID, filename, int64(len(body)), strings.NewReader(body))
}

const twoStudents = "Code,Surname,Name,Section,MAT_1,MAT_2,MAT_3,ENG_1\n" +
	"1001,Karimov,Ali,A,1,0,1,1\n" +
	"1002.0,Nazarova,Zarina,B,0,1.0,1,0\n"

func TestUploadScoresAndDerivesSubclasses(t *testing.T) {
	f := newGatFixture()
	metrics := NewMetricsService()
	svc := newIngest(f, metrics)

	summary, err := upload(t, svc, schoolScope(), "results.csv", twoStudents)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Equal(t, []string{"1001 Karimov Ali", "1002 Nazarova Zarina"}, summary.ProcessedList)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, []string{"10A", "10B"}, summary.CreatedClasses)

	sectionA := f.classes.classes["class-10A"]
	require.NotNil(t, sectionA.ParentID)
	assert.Equal(t, baseClass, *sectionA.ParentID)
	assert.Equal(t, "class-10A", f.students.byCode["1001"].ClassID)
	assert.Equal(t, "class-10B", f.students.byCode["1002"].ClassID)

	ali := f.results.saved["stu-1001|"+testID]
	assert.Equal(t, []bool{true, false, true}, ali.Scores[mathID].Ordered())
	assert.Equal(t, []bool{true}, ali.Scores[engID].Ordered())
	assert.Equal(t, 3, ali.TotalScore)
	assert.Equal(t, 2, f.results.saved["stu-1002|"+testID].TotalScore)
	assert.Equal(t, []string{"gat:report:*"}, f.cache.deleted)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Uploads)
	assert.Equal(t, uint64(2), snap.RowsProcessed)
}

func TestUploadIsIdempotent(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := upload(t, svc, schoolScope(), "results.csv", twoStudents)
	require.NoError(t, err)
	first := f.results.saved["stu-1001|"+testID]

	summary, err := upload(t, svc, schoolScope(), "results.csv", twoStudents)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Empty(t, summary.CreatedClasses)
	assert.Len(t, f.results.saved, 2)
	assert.Equal(t, first.ID, f.results.saved["stu-1001|"+testID].ID)
	assert.Equal(t, first.Scores, f.results.saved["stu-1001|"+testID].Scores)
	assert.Len(t, f.classes.created, 2)
}

func TestUploadRowFailureCitesSpreadsheetRow(t *testing.T) {
	f := newGatFixture()
	f.students.failCodes["1004"] = errors.New("deadlock detected")
	svc := newIngest(f, nil)

	body := "Code,Surname,Name,Section,MAT_1\n" +
		"1001,A,A,A,1\n" +
		"1002,B,B,A,1\n" +
		"1003,C,C,A,0\n" +
		"1004,D,D,A,1\n" +
		"1005,E,E,A,1\n"
	summary, err := upload(t, svc, schoolScope(), "results.csv", body)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ProcessedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "Error in row 5: deadlock detected", summary.Errors[0])
	assert.Equal(t, 1, f.tx.rollbacks)
	assert.Equal(t, 4, f.tx.commits)
	_, saved := f.results.saved["stu-1004|"+testID]
	assert.False(t, saved)
}

func TestUploadSkipsEmptyAndRejectsInvalidCodes(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	body := "code , SURNAME,name,section,MAT_abc,MAT_1,XYZ_1\n" +
		",Nobody,X,A,1,1,1\n" +
		"10A1,Bad,Code,A,1,1,1\n" +
		"1001,Karimov,Ali,,1,1,1\n"
	summary, err := upload(t, svc, schoolScope(), "results.csv", body)
	require.NoError(t, err)
	assert.Equal(t, []string{"row 2: empty code"}, summary.SkippedList)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, []string{`Error in row 3: invalid student code "10A1"`}, summary.Errors)
	assert.Equal(t, 1, summary.ProcessedCount)

	// empty section keeps the student in the parallel class; unknown and malformed columns are ignored
	assert.Equal(t, baseClass, f.students.byCode["1001"].ClassID)
	sheet := f.results.saved["stu-1001|"+testID].Scores
	assert.Equal(t, []string{mathID}, sheet.SubjectIDs())
	assert.Equal(t, []bool{true}, sheet[mathID].Ordered())
}

func TestUploadSchemaError(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := upload(t, svc, schoolScope(), "results.csv", "Code,Surname,Name,MAT_1\n1001,A,B,1\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSchema))
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Message, "Section")
	assert.Empty(t, f.students.byCode)
	assert.Zero(t, f.tx.commits)
}

func TestUploadEmptyFile(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := upload(t, svc, schoolScope(), "results.csv", "")
	assert.True(t, errors.Is(err, appErrors.ErrSchema))
}

func TestUploadRejectsFileTypeAndSize(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := upload(t, svc, schoolScope(), "scan.pdf", "%PDF")
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFile))

	_, err = svc.Upload(context.Background(), schoolScope(), testID, "results.csv", 21*1024*1024, strings.NewReader(twoStudents))
	assert.True(t, errors.Is(err, appErrors.ErrPayloadTooLarge))
}

func TestUploadOutsideScope(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := upload(t, svc, models.AccessScope{SchoolIDs: []string{otherID}}, "results.csv", twoStudents)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.students.byCode)
}

func TestUploadReadsEveryWorkbookSheet(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]interface{}{"Code", "Surname", "Name", "Section", "ENG_1", "ENG_2"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]interface{}{1001, "Karimov", "Ali", "A", 1, 1}))
	_, err := book.NewSheet("B")
	require.NoError(t, err)
	require.NoError(t, book.SetSheetRow("B", "A1", &[]interface{}{"Code", "Surname", "Name", "Section", "ENG_1"}))
	require.NoError(t, book.SetSheetRow("B", "A2", &[]interface{}{1002, "Nazarova", "Zarina", "B", 0}))
	_, err = book.NewSheet("Empty")
	require.NoError(t, err)
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	summary, err := svc.Upload(context.Background(), schoolScope(), testID, "results.xlsx", int64(buf.Len()), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sheets)
	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Equal(t, 2, f.results.saved["stu-1001|"+testID].TotalScore)
	assert.Equal(t, 0, f.results.saved["stu-1002|"+testID].TotalScore)
}

func TestUploadResolvesEverySchoolSubject(t *testing.T) {
	f := newGatFixture()
	test := f.tests.tests[testID]
	test.SubjectIDs = []string{mathID}
	f.tests.tests[testID] = test
	svc := newIngest(f, nil)

	summary, err := upload(t, svc, schoolScope(), "results.csv", "Code,Surname,Name,Section,MAT_1,ENG_1,BIO_1\n1001,Karimov,Ali,A,1,1,1\n")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)

	// ENG is outside the test's subject set but still a subject of the school; BIO is another school's
	sheet := f.results.saved["stu-1001|"+testID].Scores
	assert.Equal(t, []string{engID, mathID}, sheet.SubjectIDs())
	assert.Equal(t, 2, f.results.saved["stu-1001|"+testID].TotalScore)
}

func TestUploadTenRowsWithOneBadCode(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	var body strings.Builder
	body.WriteString("Code,Surname,Name,Section,MAT_1\n")
	for i := 1; i <= 10; i++ {
		code := fmt.Sprintf("%d", 2000+i)
		if i == 4 {
			code = "ABC"
		}
		fmt.Fprintf(&body, "%s,Student,%d,A,1\n", code, i)
	}
	summary, err := upload(t, svc, schoolScope(), "results.csv", body.String())
	require.NoError(t, err)
	assert.Equal(t, 9, summary.ProcessedCount)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "row 5")
	assert.Len(t, f.results.saved, 9)
	_, saved := f.students.byCode["ABC"]
	assert.False(t, saved)
}

func TestUploadReportsDetectedTestDate(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	summary, err := upload(t, svc, schoolScope(), "gat1_2024-10-10.csv", twoStudents)
	require.NoError(t, err)
	require.NotNil(t, summary.DetectedTestDate)
	assert.Equal(t, day("2024-10-10"), *summary.DetectedTestDate)
	assert.False(t, summary.TestDateMismatch)

	summary, err = upload(t, svc, schoolScope(), "gat1_2024-11-02.csv", twoStudents)
	require.NoError(t, err)
	assert.True(t, summary.TestDateMismatch)

	summary, err = upload(t, svc, schoolScope(), "results.csv", twoStudents)
	require.NoError(t, err)
	assert.Nil(t, summary.DetectedTestDate)
}

func importRoster(t *testing.T, svc *IngestService, scope models.AccessScope, body string) (*models.RosterSummary, error) {
	t.Helper()
	return svc.ImportStudents(context.Background(), scope, schoolID, "roster.csv", int64(len(body)), strings.NewReader(body))
}

func TestImportStudentsCountsCreatedAndUpdated(t *testing.T) {
	f := newGatFixture()
	f.classes.classes["class-10A"] = models.SchoolClass{ID: "class-10A", SchoolID: schoolID, Name: "10A", ParentID: strRef(baseClass)}
	f.students.byCode["1002"] = models.Student{ID: "stu-1002", StudentCode: "1002", ClassID: baseClass}
	svc := newIngest(f, nil)

	body := "student_id,Класс,фамилия_рус,имя_рус\n" +
		"1001,10a,Karimov,Ali\n" +
		"1002.0,10A,Nazarova,Zarina\n" +
		",10A,Nobody,X\n" +
		"1004,11B,Lost,Class\n" +
		"10X4,10A,Bad,Code\n"
	summary, err := importRoster(t, svc, schoolScope(), body)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"row 4: empty code or class"}, summary.SkippedList)
	assert.Equal(t, []string{
		`Error in row 5: class "11B" not found`,
		`Error in row 6: invalid student code "10X4"`,
	}, summary.Errors)

	assert.Equal(t, "class-10A", f.students.byCode["1001"].ClassID)
	assert.Equal(t, "Nazarova", f.students.byCode["1002"].LastName)
	assert.Equal(t, "class-10A", f.students.byCode["1002"].ClassID)
	assert.Equal(t, []string{"gat:report:*"}, f.cache.deleted)
}

func TestImportStudentsSchemaAndScope(t *testing.T) {
	f := newGatFixture()
	svc := newIngest(f, nil)

	_, err := importRoster(t, svc, schoolScope(), "Code,Surname,Name\n1001,A,B\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSchema))
	assert.Contains(t, appErrors.FromError(err).Message, "Class")

	_, err = importRoster(t, svc, models.AccessScope{SchoolIDs: []string{otherID}}, "Code,Class,Surname,Name\n1001,10,A,B\n")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.students.byCode)
}
