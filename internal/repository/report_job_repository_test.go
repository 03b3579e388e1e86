package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/models"
)

func TestReportJobRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewReportJobRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{Type: models.ReportTypeTestResults, CreatedBy: "u1", Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.NotEmpty(t, job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportJobRepositoryUpdateOnlyTouchesSetFields(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewReportJobRepository(db)

	status := models.ReportStatusProcessing
	progress := 10
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, progress = $2 WHERE id = $3")).
		WithArgs(status, progress, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", JobUpdate{Status: &status, Progress: &progress}))
	require.NoError(t, repo.Update(context.Background(), "job-1", JobUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
