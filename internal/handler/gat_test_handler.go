package handler

import (
	"context"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/response"
)

type registryService interface {
	List(ctx context.Context, scope models.AccessScope, filter models.GatTestFilter) ([]models.GatTestDetail, error)
	Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error)
	Create(ctx context.Context, scope models.AccessScope, req dto.GatTestRequest) (*models.GatTestDetail, error)
	Update(ctx context.Context, scope models.AccessScope, id string, req dto.GatTestRequest) (*models.GatTestDetail, error)
	Delete(ctx context.Context, scope models.AccessScope, id string) error
	DeleteResults(ctx context.Context, scope models.AccessScope, id string) (int64, error)
	ValidateQuestionCounts(ctx context.Context, scope models.AccessScope, testID string) ([]models.QuestionCountWarning, error)
	ExpectedCounts(ctx context.Context, scope models.AccessScope, classID string) ([]models.ExpectedCount, error)
}

type ingestService interface {
	Upload(ctx context.Context, scope models.AccessScope, testID, filename string, size int64, r io.Reader) (*models.IngestSummary, error)
}

// GatTestHandler exposes the test registry and result ingestion.
type GatTestHandler struct {
	registry registryService
	ingest   ingestService
}

// NewGatTestHandler constructs the handler.
func NewGatTestHandler(registry registryService, ingest ingestService) *GatTestHandler {
	return &GatTestHandler{registry: registry, ingest: ingest}
}

// List godoc
// @Summary List GAT tests
// @Tags GAT tests
// @Produce json
// @Security BearerAuth
// @Param quarter_id query string false "Quarter ID"
// @Param class_id query string false "Parallel class ID"
// @Param test_number query int false "Test number"
// @Param day query int false "Day"
// @Success 200 {object} response.Envelope
// @Router /gat-tests [get]
func (h *GatTestHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.GatTestFilter{QuarterID: c.Query("quarter_id"), ClassID: c.Query("class_id")}
	if n, err := strconv.Atoi(c.Query("test_number")); err == nil {
		filter.TestNumber = n
	}
	if d, err := strconv.Atoi(c.Query("day")); err == nil {
		filter.Day = d
	}
	tests, err := h.registry.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tests)
}

// Get godoc
// @Summary Get a GAT test
// @Tags GAT tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /gat-tests/{id} [get]
func (h *GatTestHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	test, err := h.registry.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, test)
}

// Create godoc
// @Summary Register a GAT test
// @Tags GAT tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GatTestRequest true "Test"
// @Success 201 {object} response.Envelope
// @Router /gat-tests [post]
func (h *GatTestHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.GatTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid gat test payload"))
		return
	}
	test, err := h.registry.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// Update godoc
// @Summary Update a GAT test
// @Tags GAT tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param payload body dto.GatTestRequest true "Test"
// @Success 200 {object} response.Envelope
// @Router /gat-tests/{id} [put]
func (h *GatTestHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.GatTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid gat test payload"))
		return
	}
	test, err := h.registry.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, test)
}

// Delete godoc
// @Summary Delete a GAT test with its results
// @Tags GAT tests
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 204
// @Router /gat-tests/{id} [delete]
func (h *GatTestHandler) Delete(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteResults godoc
// @Summary Delete every result of a GAT test
// @Tags GAT tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /gat-tests/{id}/results [delete]
func (h *GatTestHandler) DeleteResults(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id := c.Param("id")
	deleted, err := h.registry.DeleteResults(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.DeleteResultsResponse{GatTestID: id, Deleted: deleted})
}

// QuestionWarnings godoc
// @Summary Compare uploaded question numbers with the configured counts
// @Tags GAT tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /gat-tests/{id}/question-warnings [get]
func (h *GatTestHandler) QuestionWarnings(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	warnings, err := h.registry.ValidateQuestionCounts(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, warnings)
}

// ExpectedCounts godoc
// @Summary Question counts of a class, inherited from its parallel when unset
// @Tags GAT tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/expected-counts [get]
func (h *GatTestHandler) ExpectedCounts(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	counts, err := h.registry.ExpectedCounts(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, counts)
}

// Upload godoc
// @Summary Upload a results spreadsheet
// @Description Accepts .xlsx, .xlsm or .csv with Code, Surname, Name, Section and SUBJ_q columns.
// @Tags GAT tests
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param file formData file true "Spreadsheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /gat-tests/{id}/upload [post]
func (h *GatTestHandler) Upload(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
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

	summary, err := h.ingest.Upload(c.Request.Context(), scope, c.Param("id"), header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
