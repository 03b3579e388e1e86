package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
	"github.com/zafarze/gat-sub000/pkg/export"
	"github.com/zafarze/gat-sub000/pkg/storage"
)

type reportSource interface {
	TestResults(ctx context.Context, scope models.AccessScope, testID string) (*dto.TestResultsReport, error)
	Comparison(ctx context.Context, scope models.AccessScope, firstID, secondID string) (*dto.ComparisonResponse, error)
	GradeDistribution(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*scoring.GradeDistributionReport, error)
	Monitoring(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter, grading bool) (*scoring.MonitoringReport, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// RenderedExport is a rendered file ready to be streamed.
type RenderedExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService turns report payloads into tabular datasets and renders them.
type ExportService struct {
	reports   reportSource
	storage   fileStorage
	exporters export.Registry
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. A nil registry uses every built-in format.
func NewExportService(reports reportSource, files fileStorage, signer *storage.SignedURLSigner, exporters export.Registry, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if exporters == nil {
		exporters = export.NewRegistry()
	}
	return &ExportService{
		reports:   reports,
		storage:   files,
		exporters: exporters,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Render builds the dataset of a report and renders it in the requested format.
func (s *ExportService) Render(ctx context.Context, scope models.AccessScope, reportType models.ReportType, params models.ReportJobParams) (*RenderedExport, error) {
	exporter, err := s.exporters.Get(string(params.Format))
	if err != nil {
		return nil, invalid("unsupported report format")
	}
	dataset, err := s.buildDataset(ctx, scope, reportType, params)
	if err != nil {
		return nil, err
	}
	data, err := exporter.Render(dataset)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}
	return &RenderedExport{
		Filename:    export.Filename(dataset.Title, exporter),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

// Generate renders a job's report with the scope captured at request time and stores it
// behind a signed download token.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	rendered, err := s.Render(ctx, job.Params.Scope, job.Type, job.Params)
	if err != nil {
		return nil, err
	}

	filename := time.Now().UTC().Format("20060102_150405") + "_" + rendered.Filename
	relPath, err := s.storage.Save(filename, rendered.Data)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("export stored", zap.String("job_id", job.ID), zap.String("path", relPath))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, scope models.AccessScope, reportType models.ReportType, params models.ReportJobParams) (export.Dataset, error) {
	switch reportType {
	case models.ReportTypeTestResults:
		if params.GatTestID == "" {
			return export.Dataset{}, invalid("gatTestId is required")
		}
		report, err := s.reports.TestResults(ctx, scope, params.GatTestID)
		if err != nil {
			return export.Dataset{}, err
		}
		return testResultsDataset(report), nil
	case models.ReportTypeComparison:
		report, err := s.reports.Comparison(ctx, scope, params.GatTestID, params.SecondID)
		if err != nil {
			return export.Dataset{}, err
		}
		return comparisonDataset(report), nil
	case models.ReportTypeGradeDistribution:
		report, err := s.reports.GradeDistribution(ctx, scope, filterFromParams(params))
		if err != nil {
			return export.Dataset{}, err
		}
		return gradeDistributionDataset(report), nil
	case models.ReportTypeMonitoring:
		report, err := s.reports.Monitoring(ctx, scope, filterFromParams(params), params.Grading)
		if err != nil {
			return export.Dataset{}, err
		}
		return monitoringDataset(report), nil
	default:
		return export.Dataset{}, invalid("unsupported report type")
	}
}

func filterFromParams(params models.ReportJobParams) dto.ReportFilter {
	var filter dto.ReportFilter
	if params.GatTestID != "" {
		filter.GatTestIDs = []string{params.GatTestID}
	}
	if params.QuarterID != "" {
		filter.QuarterIDs = []string{params.QuarterID}
	}
	if params.SchoolID != "" {
		filter.SchoolIDs = []string{params.SchoolID}
	}
	if params.ClassID != "" {
		filter.ClassIDs = []string{params.ClassID}
	}
	return filter
}

func testResultsDataset(report *dto.TestResultsReport) export.Dataset {
	headers := []string{"No", "Code", "Student", "Class", "School"}
	for _, col := range report.Table.Columns {
		for _, q := range col.Questions {
			headers = append(headers, fmt.Sprintf("%s %d", col.SubjectName, q))
		}
	}
	headers = append(headers, "Total", "Percentage", "Grade", "Class rank", "School rank")

	rows := make([]map[string]string, 0, len(report.Table.Rows))
	for _, r := range report.Table.Rows {
		row := map[string]string{
			"No":          strconv.Itoa(r.Position),
			"Code":        r.StudentCode,
			"Student":     r.Name,
			"Class":       r.ClassName,
			"School":      r.SchoolName,
			"Total":       strconv.Itoa(r.TotalScore),
			"Percentage":  formatFloat(r.Percentage),
			"Grade":       strconv.Itoa(r.Grade),
			"Class rank":  strconv.Itoa(r.Placement.ClassRank),
			"School rank": strconv.Itoa(r.Placement.SchoolRank),
		}
		for _, col := range report.Table.Columns {
			cell := r.Subjects[col.SubjectID]
			for i, q := range col.Questions {
				value := ""
				if i < len(cell.Answers) && cell.Answers[i] != nil {
					value = "0"
					if *cell.Answers[i] {
						value = "1"
					}
				}
				row[fmt.Sprintf("%s %d", col.SubjectName, q)] = value
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: report.Test.Name + " results", Headers: headers, Rows: rows}
}

func comparisonDataset(report *dto.ComparisonResponse) export.Dataset {
	headers := []string{"No", "Code", "Student", "Class", "Score 1", "Rank 1", "Score 2", "Rank 2", "Average rank", "Progress", "Total"}
	rows := make([]map[string]string, 0, len(report.Report.Rows))
	for _, r := range report.Report.Rows {
		rows = append(rows, map[string]string{
			"No":           strconv.Itoa(r.Position),
			"Code":         r.StudentCode,
			"Student":      r.Name,
			"Class":        r.ClassName,
			"Score 1":      formatIntPtr(r.Score1),
			"Rank 1":       formatIntPtr(r.Rank1),
			"Score 2":      formatIntPtr(r.Score2),
			"Rank 2":       formatIntPtr(r.Rank2),
			"Average rank": formatFloatPtr(r.AverageRank),
			"Progress":     formatIntPtr(r.Progress),
			"Total":        strconv.Itoa(r.Total),
		})
	}
	title := fmt.Sprintf("%s vs %s", report.First.Name, report.Second.Name)
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}

func gradeDistributionDataset(report *scoring.GradeDistributionReport) export.Dataset {
	headers := []string{"Subject", "Class"}
	for grade := 1; grade <= 10; grade++ {
		headers = append(headers, strconv.Itoa(grade))
	}
	headers = append(headers, "Students")

	countsRow := func(subject, class string, counts map[int]int, students int) map[string]string {
		row := map[string]string{"Subject": subject, "Class": class, "Students": strconv.Itoa(students)}
		for grade := 1; grade <= 10; grade++ {
			row[strconv.Itoa(grade)] = strconv.Itoa(counts[grade])
		}
		return row
	}

	rows := make([]map[string]string, 0)
	for _, subject := range report.Subjects {
		for _, class := range subject.Classes {
			rows = append(rows, countsRow(subject.SubjectName, class.ClassName, class.Counts, class.Students))
		}
		rows = append(rows, countsRow(subject.SubjectName, "All classes", subject.Total, subject.Students))
	}
	rows = append(rows, countsRow("All subjects", "", report.Summary, report.Students))
	return export.Dataset{Title: "Grade distribution", Headers: headers, Rows: rows}
}

func monitoringDataset(report *scoring.MonitoringReport) export.Dataset {
	headers := []string{"No", "Student", "Class", "School"}
	for _, subject := range report.Subjects {
		headers = append(headers, subject.Name)
	}
	headers = append(headers, "Total")

	rows := make([]map[string]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		row := map[string]string{
			"No":      strconv.Itoa(r.Position),
			"Student": r.Name,
			"Class":   r.ClassName,
			"School":  r.SchoolName,
			"Total":   strconv.Itoa(r.Total),
		}
		for _, subject := range report.Subjects {
			if v, ok := r.Values[subject.ID]; ok {
				row[subject.Name] = strconv.Itoa(v)
			}
		}
		rows = append(rows, row)
	}
	title := "Monitoring"
	if report.Grading {
		title = "Grading"
	}
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
