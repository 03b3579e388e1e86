package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

type registryMock struct {
	filter  models.GatTestFilter
	created dto.GatTestRequest
	deleted int64
	err     error
}

func (m *registryMock) List(ctx context.Context, scope models.AccessScope, filter models.GatTestFilter) ([]models.GatTestDetail, error) {
	m.filter = filter
	return []models.GatTestDetail{}, m.err
}

func (m *registryMock) Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.GatTestDetail{GatTest: models.GatTest{ID: id}}, nil
}

func (m *registryMock) Create(ctx context.Context, scope models.AccessScope, req dto.GatTestRequest) (*models.GatTestDetail, error) {
	m.created = req
	return &models.GatTestDetail{GatTest: models.GatTest{ID: "test-1", Name: req.Name}}, m.err
}

func (m *registryMock) Update(ctx context.Context, scope models.AccessScope, id string, req dto.GatTestRequest) (*models.GatTestDetail, error) {
	return &models.GatTestDetail{GatTest: models.GatTest{ID: id}}, m.err
}

func (m *registryMock) Delete(ctx context.Context, scope models.AccessScope, id string) error {
	return m.err
}

func (m *registryMock) DeleteResults(ctx context.Context, scope models.AccessScope, id string) (int64, error) {
	return m.deleted, m.err
}

func (m *registryMock) ValidateQuestionCounts(ctx context.Context, scope models.AccessScope, testID string) ([]models.QuestionCountWarning, error) {
	return []models.QuestionCountWarning{{SubjectID: "mat", Expected: 3, Actual: 4}}, m.err
}

func (m *registryMock) ExpectedCounts(ctx context.Context, scope models.AccessScope, classID string) ([]models.ExpectedCount, error) {
	return nil, m.err
}

type ingestMock struct {
	testID   string
	filename string
	content  string
	err      error
}

func (m *ingestMock) Upload(ctx context.Context, scope models.AccessScope, testID, filename string, size int64, r io.Reader) (*models.IngestSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(r)
	m.testID, m.filename, m.content = testID, filename, string(data)
	return &models.IngestSummary{GatTestID: testID, ProcessedCount: 1, ProcessedList: []string{"Karimov Ali"}}, nil
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestGatTestListFilters(t *testing.T) {
	registry := &registryMock{}
	h := NewGatTestHandler(registry, nil)

	c, w := newGinContext(http.MethodGet, "/gat-tests?quarter_id=q1&test_number=2&day=x", nil)
	authenticate(c, teacher())
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q1", registry.filter.QuarterID)
	assert.Equal(t, 2, registry.filter.TestNumber)
	assert.Zero(t, registry.filter.Day)
}

func TestGatTestCreate(t *testing.T) {
	registry := &registryMock{}
	h := NewGatTestHandler(registry, nil)

	payload := []byte(`{"name":"GAT-2","testNumber":2,"testDate":"2024-10-20T00:00:00Z","quarterId":"q1","classId":"class-10","subjectIds":["mat"]}`)
	c, w := newGinContext(http.MethodPost, "/gat-tests", payload)
	authenticate(c, teacher())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "GAT-2", registry.created.Name)
	assert.Equal(t, []string{"mat"}, registry.created.SubjectIDs)
}

func TestGatTestCreateBadJSON(t *testing.T) {
	h := NewGatTestHandler(&registryMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/gat-tests", []byte(`{"name":`))
	authenticate(c, teacher())
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatTestGetNotFound(t *testing.T) {
	h := NewGatTestHandler(&registryMock{err: appErrors.Clone(appErrors.ErrNotFound, "gat test not found")}, nil)

	c, w := newGinContext(http.MethodGet, "/gat-tests/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	authenticate(c, teacher())
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "gat test not found", decode(t, w).Error.Message)
}

func TestGatTestDeleteResults(t *testing.T) {
	h := NewGatTestHandler(&registryMock{deleted: 12}, nil)

	c, w := newGinContext(http.MethodDelete, "/gat-tests/test-1/results", nil)
	c.Params = gin.Params{{Key: "id", Value: "test-1"}}
	authenticate(c, teacher())
	h.DeleteResults(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gatTestId":"test-1","deleted":12}`, string(decode(t, w).Data))
}

func TestGatTestUpload(t *testing.T) {
	ingest := &ingestMock{}
	h := NewGatTestHandler(&registryMock{}, ingest)

	body, contentType := multipartBody(t, "file", "results.csv", "Code,Surname,Name,Section\n")
	c, w := newGinContext(http.MethodPost, "/gat-tests/test-1/upload", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: "test-1"}}
	authenticate(c, teacher())
	h.Upload(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-1", ingest.testID)
	assert.Equal(t, "results.csv", ingest.filename)
	assert.Equal(t, "Code,Surname,Name,Section\n", ingest.content)
}

func TestGatTestUploadRequiresFile(t *testing.T) {
	h := NewGatTestHandler(&registryMock{}, &ingestMock{})

	body, contentType := multipartBody(t, "attachment", "results.csv", "x")
	c, w := newGinContext(http.MethodPost, "/gat-tests/test-1/upload", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	authenticate(c, teacher())
	h.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatTestUploadPropagatesIngestErrors(t *testing.T) {
	h := NewGatTestHandler(&registryMock{}, &ingestMock{err: appErrors.ErrUnsupportedFile})

	body, contentType := multipartBody(t, "file", "results.pdf", "x")
	c, w := newGinContext(http.MethodPost, "/gat-tests/test-1/upload", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	authenticate(c, teacher())
	h.Upload(c)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestGatTestRequiresAuth(t *testing.T) {
	h := NewGatTestHandler(&registryMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/gat-tests", nil)
	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
