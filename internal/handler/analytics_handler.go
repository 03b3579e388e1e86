package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
	"github.com/zafarze/gat-sub000/internal/service"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/response"
)

type analyticsService interface {
	TestResults(ctx context.Context, scope models.AccessScope, testID string) (*dto.TestResultsReport, error)
	Comparison(ctx context.Context, scope models.AccessScope, firstID, secondID string) (*dto.ComparisonResponse, error)
	GradeDistribution(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*scoring.GradeDistributionReport, error)
	Difficulty(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*dto.DifficultyReport, error)
	DeepAnalysis(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*scoring.DeepAnalysisReport, error)
	Monitoring(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter, grading bool) (*scoring.MonitoringReport, error)
	StudentProgress(ctx context.Context, scope models.AccessScope, studentID string) (*dto.StudentProgressReport, error)
	Dashboard(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*dto.DashboardReport, error)
}

type exportRenderer interface {
	Render(ctx context.Context, scope models.AccessScope, reportType models.ReportType, params models.ReportJobParams) (*service.RenderedExport, error)
}

// AnalyticsHandler serves the scored reports and their synchronous exports.
type AnalyticsHandler struct {
	analytics analyticsService
	exports   exportRenderer
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService, exports exportRenderer) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, exports: exports}
}

// TestResults godoc
// @Summary Ranked results table of a test
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /reports/tests/{id}/results [get]
func (h *AnalyticsHandler) TestResults(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	start := time.Now()
	report, err := h.analytics.TestResults(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report, timingMeta(start))
}

// Comparison godoc
// @Summary Compare students across two tests
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param test1 query string true "First test ID"
// @Param test2 query string true "Second test ID"
// @Success 200 {object} response.Envelope
// @Router /reports/comparison [get]
func (h *AnalyticsHandler) Comparison(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	start := time.Now()
	report, err := h.analytics.Comparison(c.Request.Context(), scope, c.Query("test1"), c.Query("test2"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report, timingMeta(start))
}

// GradeDistribution godoc
// @Summary Grade counts per subject and class
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param test query []string false "Test IDs" collectionFormat(multi)
// @Param quarter query []string false "Quarter IDs" collectionFormat(multi)
// @Param school query []string false "School IDs" collectionFormat(multi)
// @Param class query []string false "Class IDs" collectionFormat(multi)
// @Param subject query []string false "Subject IDs" collectionFormat(multi)
// @Param test_number query []int false "Test numbers" collectionFormat(multi)
// @Param day query []int false "Days" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /reports/grade-distribution [get]
func (h *AnalyticsHandler) GradeDistribution(c *gin.Context) {
	h.filtered(c, func(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (interface{}, error) {
		return h.analytics.GradeDistribution(ctx, scope, filter)
	})
}

// Difficulty godoc
// @Summary Question difficulty and the weakest questions
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param quarter query []string false "Quarter IDs" collectionFormat(multi)
// @Param school query []string false "School IDs" collectionFormat(multi)
// @Param subject query []string false "Subject IDs" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /reports/difficulty [get]
func (h *AnalyticsHandler) Difficulty(c *gin.Context) {
	h.filtered(c, func(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (interface{}, error) {
		return h.analytics.Difficulty(ctx, scope, filter)
	})
}

// DeepAnalysis godoc
// @Summary School comparison per subject with quarter trend
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param quarter query []string false "Quarter IDs" collectionFormat(multi)
// @Param school query []string false "School IDs" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /reports/deep-analysis [get]
func (h *AnalyticsHandler) DeepAnalysis(c *gin.Context) {
	h.filtered(c, func(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (interface{}, error) {
		return h.analytics.DeepAnalysis(ctx, scope, filter)
	})
}

// Monitoring godoc
// @Summary Student by subject monitoring matrix
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param quarter query []string false "Quarter IDs" collectionFormat(multi)
// @Param class query []string false "Class IDs" collectionFormat(multi)
// @Param grading query bool false "Show grades instead of scores"
// @Success 200 {object} response.Envelope
// @Router /reports/monitoring [get]
func (h *AnalyticsHandler) Monitoring(c *gin.Context) {
	grading, _ := strconv.ParseBool(c.DefaultQuery("grading", "false"))
	h.filtered(c, func(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (interface{}, error) {
		return h.analytics.Monitoring(ctx, scope, filter, grading)
	})
}

// Dashboard godoc
// @Summary Summary statistics of the filtered results
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param quarter query []string false "Quarter IDs" collectionFormat(multi)
// @Param school query []string false "School IDs" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /reports/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	h.filtered(c, func(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (interface{}, error) {
		return h.analytics.Dashboard(ctx, scope, filter)
	})
}

// StudentProgress godoc
// @Summary Every result of a student with placements
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{id}/progress [get]
func (h *AnalyticsHandler) StudentProgress(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	start := time.Now()
	report, err := h.analytics.StudentProgress(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report, timingMeta(start))
}

// ExportTestResults godoc
// @Summary Download the results table of a test
// @Tags Reports
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param format query string false "csv, pdf or xlsx" default(xlsx)
// @Success 200 {file} file
// @Router /reports/tests/{id}/export [get]
func (h *AnalyticsHandler) ExportTestResults(c *gin.Context) {
	h.render(c, models.ReportTypeTestResults, models.ReportJobParams{
		Format:    models.ReportFormat(c.DefaultQuery("format", "xlsx")),
		GatTestID: c.Param("id"),
	})
}

// Export godoc
// @Summary Download any tabular report
// @Tags Reports
// @Produce octet-stream
// @Security BearerAuth
// @Param type query string true "test_results, comparison, grade_distribution or monitoring"
// @Param format query string false "csv, pdf or xlsx" default(xlsx)
// @Param test1 query string false "Test ID"
// @Param test2 query string false "Second test ID"
// @Param quarter query string false "Quarter ID"
// @Param school query string false "School ID"
// @Param class query string false "Class ID"
// @Param grading query bool false "Grades instead of scores"
// @Success 200 {file} file
// @Router /reports/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	grading, _ := strconv.ParseBool(c.DefaultQuery("grading", "false"))
	h.render(c, models.ReportType(strings.TrimSpace(c.Query("type"))), models.ReportJobParams{
		Format:    models.ReportFormat(c.DefaultQuery("format", "xlsx")),
		GatTestID: c.Query("test1"),
		SecondID:  c.Query("test2"),
		QuarterID: c.Query("quarter"),
		SchoolID:  c.Query("school"),
		ClassID:   c.Query("class"),
		Grading:   grading,
	})
}

func (h *AnalyticsHandler) render(c *gin.Context, reportType models.ReportType, params models.ReportJobParams) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	rendered, err := h.exports.Render(c.Request.Context(), scope, reportType, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Data)
}

func (h *AnalyticsHandler) filtered(c *gin.Context, run func(context.Context, models.AccessScope, dto.ReportFilter) (interface{}, error)) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var filter dto.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, bindError(err, "invalid report filter"))
		return
	}
	start := time.Now()
	report, err := run(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report, timingMeta(start))
}
