package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/models"
)

var resultRowColumns = []string{"result_id", "student_id", "student_code", "first_name", "last_name", "class_id", "class_name",
	"class_parent_id", "school_id", "school_name", "gat_test_id", "test_name", "test_number", "day", "test_date",
	"test_class_id", "quarter_id", "quarter_name", "quarter_start", "scores", "total_score"}

func TestResultRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	now := time.Now()
	scores := []byte(`{"version":2,"subjects":{"m":{"1":true,"2":false}}}`)
	rows := sqlmock.NewRows(resultRowColumns).
		AddRow("r1", "s1", "1001", "Ali", "Karimov", "c10a", "10A", "c10", "sc1", "School 1", "t1", "GAT-1", 1, nil, now, "c10", "q1", "Q1", now, scores, 1)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sc.id = ANY($1::uuid[]) AND s.id = $2 AND t.id = ANY($3::uuid[]) AND (c.id = ANY($4::uuid[]) OR c.parent_id = ANY($4::uuid[])) AND t.test_number = ANY($5) ORDER BY r.total_score DESC")).
		WithArgs(sqlmock.AnyArg(), "s1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), models.ResultFilter{
		Scope:       models.AccessScope{SchoolIDs: []string{"sc1"}, StudentID: "s1"},
		GatTestIDs:  []string{"t1"},
		ClassIDs:    []string{"c10"},
		TestNumbers: []int{1},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "c10", result[0].BaseClassID())
	assert.Equal(t, 1, result[0].Scores.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryListFullAccess(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN quarters q ON q.id = t.quarter_id ORDER BY r.total_score DESC")).
		WillReturnRows(sqlmock.NewRows(resultRowColumns))

	result, err := repo.List(context.Background(), models.ResultFilter{Scope: models.FullAccess()})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryUpsertReplacesScores(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery("INSERT INTO student_results .* ON CONFLICT \\(student_id, gat_test_id\\) DO UPDATE SET scores = EXCLUDED.scores").
		WithArgs(sqlmock.AnyArg(), "s1", "t1", sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("r-old", time.Now()))

	sheet := models.ScoreSheet{}
	sheet.Set("m", 1, true)
	sheet.Set("m", 2, true)
	sheet.Set("m", 3, true)
	result := &models.StudentResult{StudentID: "s1", GatTestID: "t1", Scores: sheet, TotalScore: sheet.Total()}
	require.NoError(t, repo.Upsert(context.Background(), db, result))
	assert.Equal(t, "r-old", result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryDeleteByTest(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_results WHERE gat_test_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.DeleteByTest(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
