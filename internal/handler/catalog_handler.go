package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/pkg/response"
)

type catalogService interface {
	ListSchools(ctx context.Context, scope models.AccessScope) ([]models.School, error)
	CreateSchool(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error)
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	CreateYear(ctx context.Context, req dto.CreateYearRequest) (*models.AcademicYear, error)
	ListQuarters(ctx context.Context, yearID string) ([]models.Quarter, error)
	CreateQuarter(ctx context.Context, yearID string, req dto.CreateQuarterRequest) (*models.Quarter, error)
	ListClasses(ctx context.Context, scope models.AccessScope, schoolID string) ([]models.SchoolClass, error)
	CreateClass(ctx context.Context, scope models.AccessScope, schoolID string, req dto.CreateClassRequest) (*models.SchoolClass, error)
	ListSubjects(ctx context.Context, scope models.AccessScope, schoolID string) ([]models.Subject, error)
	CreateSubject(ctx context.Context, scope models.AccessScope, schoolID string, req dto.CreateSubjectRequest) (*models.Subject, error)
	ClassSubjects(ctx context.Context, scope models.AccessScope, classID string) ([]models.ClassSubjectDetail, error)
	UpsertClassSubjects(ctx context.Context, scope models.AccessScope, classID string, req dto.UpsertClassSubjectsRequest) ([]models.ClassSubjectDetail, error)
	ListStudents(ctx context.Context, scope models.AccessScope, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	CreateStudent(ctx context.Context, scope models.AccessScope, req dto.CreateStudentRequest) (*models.Student, error)
	Student(ctx context.Context, scope models.AccessScope, id string) (*models.Student, string, error)
}

// CatalogHandler serves schools, the academic calendar, classes, subjects and students.
type CatalogHandler struct {
	catalog catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog catalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListSchools godoc
// @Summary List schools visible to the caller
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *CatalogHandler) ListSchools(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	schools, err := h.catalog.ListSchools(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schools)
}

// CreateSchool godoc
// @Summary Create a school
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSchoolRequest true "School"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *CatalogHandler) CreateSchool(c *gin.Context) {
	var req dto.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid school payload"))
		return
	}
	school, err := h.catalog.CreateSchool(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// ListYears godoc
// @Summary List academic years
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *CatalogHandler) ListYears(c *gin.Context) {
	years, err := h.catalog.ListYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, years)
}

// CreateYear godoc
// @Summary Create an academic year
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateYearRequest true "Academic year"
// @Success 201 {object} response.Envelope
// @Router /academic-years [post]
func (h *CatalogHandler) CreateYear(c *gin.Context) {
	var req dto.CreateYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid academic year payload"))
		return
	}
	year, err := h.catalog.CreateYear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// ListQuarters godoc
// @Summary List the quarters of a year
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /academic-years/{id}/quarters [get]
func (h *CatalogHandler) ListQuarters(c *gin.Context) {
	quarters, err := h.catalog.ListQuarters(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, quarters)
}

// CreateQuarter godoc
// @Summary Create a quarter inside a year
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Academic year ID"
// @Param payload body dto.CreateQuarterRequest true "Quarter"
// @Success 201 {object} response.Envelope
// @Router /academic-years/{id}/quarters [post]
func (h *CatalogHandler) CreateQuarter(c *gin.Context) {
	var req dto.CreateQuarterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid quarter payload"))
		return
	}
	quarter, err := h.catalog.CreateQuarter(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quarter)
}

// ListClasses godoc
// @Summary List the classes of a school
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/classes [get]
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	classes, err := h.catalog.ListClasses(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes)
}

// CreateClass godoc
// @Summary Create a parallel class or a section
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Param payload body dto.CreateClassRequest true "Class"
// @Success 201 {object} response.Envelope
// @Router /schools/{id}/classes [post]
func (h *CatalogHandler) CreateClass(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid class payload"))
		return
	}
	class, err := h.catalog.CreateClass(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// ListSubjects godoc
// @Summary List the subjects of a school
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/subjects [get]
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	subjects, err := h.catalog.ListSubjects(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, subjects)
}

// CreateSubject godoc
// @Summary Create a subject
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Param payload body dto.CreateSubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Router /schools/{id}/subjects [post]
func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid subject payload"))
		return
	}
	subject, err := h.catalog.CreateSubject(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ClassSubjects godoc
// @Summary Question counts configured on a class
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/subjects [get]
func (h *CatalogHandler) ClassSubjects(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	items, err := h.catalog.ClassSubjects(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// UpsertClassSubjects godoc
// @Summary Set question counts of a class
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.UpsertClassSubjectsRequest true "Question counts"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/subjects [put]
func (h *CatalogHandler) UpsertClassSubjects(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.UpsertClassSubjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid class subjects payload"))
		return
	}
	items, err := h.catalog.UpsertClassSubjects(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// ListStudents godoc
// @Summary List students
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param class_id query string false "Class ID"
// @Param search query string false "Code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *CatalogHandler) ListStudents(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.StudentFilter{
		ClassID: c.Query("class_id"),
		Search:  strings.TrimSpace(c.Query("search")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	students, pagination, err := h.catalog.ListStudents(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// CreateStudent godoc
// @Summary Create a student
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *CatalogHandler) CreateStudent(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid student payload"))
		return
	}
	student, err := h.catalog.CreateStudent(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// GetStudent godoc
// @Summary Get a student
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *CatalogHandler) GetStudent(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	student, _, err := h.catalog.Student(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}
