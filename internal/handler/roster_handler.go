package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/response"
)

type rosterImporter interface {
	ImportStudents(ctx context.Context, scope models.AccessScope, schoolID, filename string, size int64, r io.Reader) (*models.RosterSummary, error)
}

// RosterHandler imports student rosters.
type RosterHandler struct {
	importer rosterImporter
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(importer rosterImporter) *RosterHandler {
	return &RosterHandler{importer: importer}
}

// Import godoc
// @Summary Import a student roster
// @Description Accepts .xlsx, .xlsm or .csv with Code (student_id), Class, Surname and Name columns. Classes must exist.
// @Tags Students
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param schoolId formData string true "School ID"
// @Param file formData file true "Spreadsheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /students/import [post]
func (h *RosterHandler) Import(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	schoolID := c.PostForm("schoolId")
	if schoolID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "schoolId is required"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot read upload"))
		return
	}
	defer file.Close()

	summary, err := h.importer.ImportStudents(c.Request.Context(), scope, schoolID, header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
