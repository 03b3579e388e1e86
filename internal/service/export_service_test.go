package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/storage"
)

func newExport(t *testing.T) (*ExportService, *gatFixture) {
	t.Helper()
	f := newGatFixture()
	analytics := newAnalytics(f)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	return NewExportService(analytics, files, signer, nil, ExportConfig{APIPrefix: "/api/v1/"}, nil), f
}

func TestRenderTestResultsCSV(t *testing.T) {
	svc, _ := newExport(t)

	rendered, err := svc.Render(context.Background(), schoolScope(), models.ReportTypeTestResults, models.ReportJobParams{Format: models.ReportFormatCSV, GatTestID: testID})
	require.NoError(t, err)
	assert.Equal(t, "GAT_1_results.csv", rendered.Filename)
	assert.Contains(t, rendered.ContentType, "text/csv")

	lines := strings.Split(strings.TrimSpace(string(rendered.Data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Math 1,Math 2,Math 3,Total")
	assert.Contains(t, string(rendered.Data), ",1,1,1,3,")
}

func TestRenderRejectsUnknownFormatAndType(t *testing.T) {
	svc, _ := newExport(t)
	ctx := context.Background()

	_, err := svc.Render(ctx, schoolScope(), models.ReportTypeTestResults, models.ReportJobParams{Format: "docx", GatTestID: testID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Render(ctx, schoolScope(), models.ReportType("heatmap"), models.ReportJobParams{Format: models.ReportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGenerateStoresSignedExport(t *testing.T) {
	svc, _ := newExport(t)
	job := &models.ReportJob{
		ID:   "job-1",
		Type: models.ReportTypeGradeDistribution,
		Params: models.ReportJobParams{
			Format:    models.ReportFormatXLSX,
			QuarterID: quarterID,
			Scope:     schoolScope(),
		},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".xlsx"))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, file.Close())
	require.NoError(t, err)
	assert.True(t, len(data) > 0)

	require.NoError(t, svc.Delete(relPath))
	_, err = svc.Open(relPath)
	assert.Error(t, err)
}

func TestGenerateUsesStoredScope(t *testing.T) {
	svc, _ := newExport(t)
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeTestResults,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV, GatTestID: testID, Scope: models.AccessScope{SchoolIDs: []string{otherID}}},
	}

	_, err := svc.Generate(context.Background(), job)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
