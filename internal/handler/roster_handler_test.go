package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

type rosterMock struct {
	schoolID string
	content  string
	err      error
}

func (m *rosterMock) ImportStudents(ctx context.Context, scope models.AccessScope, schoolID, filename string, size int64, r io.Reader) (*models.RosterSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, _ := io.ReadAll(r)
	m.schoolID, m.content = schoolID, string(data)
	return &models.RosterSummary{Created: 1, Updated: 2, SkippedList: []string{}, Errors: []string{}}, nil
}

func rosterBody(t *testing.T, schoolID, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if schoolID != "" {
		require.NoError(t, writer.WriteField("schoolId", schoolID))
	}
	part, err := writer.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRosterImport(t *testing.T) {
	importer := &rosterMock{}
	h := NewRosterHandler(importer)
	body, contentType := rosterBody(t, "school-1", "Code,Class,Surname,Name\n")
	c, w := newGinContext(http.MethodPost, "/api/v1/students/import", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	authenticate(c, teacher())

	h.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", importer.schoolID)
	assert.Equal(t, "Code,Class,Surname,Name\n", importer.content)
	assert.JSONEq(t, `{"created":1,"updated":2,"skipped":0,"skipped_list":[],"errors":[]}`, string(decode(t, w).Data))
}

func TestRosterImportRequiresSchool(t *testing.T) {
	h := NewRosterHandler(&rosterMock{})
	body, contentType := rosterBody(t, "", "Code\n")
	c, w := newGinContext(http.MethodPost, "/api/v1/students/import", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	authenticate(c, teacher())

	h.Import(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRosterImportSchemaError(t *testing.T) {
	h := NewRosterHandler(&rosterMock{err: appErrors.ErrSchema})
	body, contentType := rosterBody(t, "school-1", "Code\n")
	c, w := newGinContext(http.MethodPost, "/api/v1/students/import", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	authenticate(c, teacher())

	h.Import(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SCHEMA_ERROR", decode(t, w).Error.Code)
}
