package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
	"github.com/zafarze/gat-sub000/pkg/config"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/spreadsheet"
)

// Required spreadsheet columns, matched case-insensitively.
const (
	ColumnCode    = "Code"
	ColumnSurname = "Surname"
	ColumnName    = "Name"
	ColumnSection = "Section"
)

var requiredColumns = []string{ColumnCode, ColumnSurname, ColumnName, ColumnSection}

// Roster columns with the header spellings accepted for each.
var (
	rosterCode    = []string{"Code", "student_id"}
	rosterClass   = []string{"Class", "класс"}
	rosterSurname = []string{"Surname", "фамилия_рус"}
	rosterName    = []string{"Name", "имя_рус"}
	rosterColumns = [][]string{rosterCode, rosterClass, rosterSurname, rosterName}
)

type transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type ingestTests interface {
	Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error)
}

type ingestCatalog interface {
	Class(ctx context.Context, scope models.AccessScope, id string) (*models.SchoolClass, error)
	GetOrCreateSubclass(ctx context.Context, q sqlx.ExtContext, schoolID, name, parentID string) (*models.SchoolClass, bool, error)
	SubjectAbbreviationMap(ctx context.Context, schoolID string) (map[string]models.Subject, error)
	ListClasses(ctx context.Context, scope models.AccessScope, schoolID string) ([]models.SchoolClass, error)
}

type studentWriter interface {
	UpsertByCode(ctx context.Context, q sqlx.ExtContext, student *models.Student) (bool, error)
}

type resultWriter interface {
	Upsert(ctx context.Context, q sqlx.ExtContext, result *models.StudentResult) error
}

// IngestService turns uploaded result spreadsheets into students and scored results.
type IngestService struct {
	tests    ingestTests
	catalog  ingestCatalog
	students studentWriter
	results  resultWriter
	tx       transactor
	cache    *CacheService
	metrics  *MetricsService
	cfg      config.IngestConfig
	logger   *zap.Logger
}

// IngestDeps groups the collaborators of IngestService.
type IngestDeps struct {
	Tests    ingestTests
	Catalog  ingestCatalog
	Students studentWriter
	Results  resultWriter
	Tx       transactor
	Cache    *CacheService
	Metrics  *MetricsService
}

// NewIngestService constructs an IngestService.
func NewIngestService(deps IngestDeps, cfg config.IngestConfig, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".xlsx", ".xlsm", ".csv"}
	}
	return &IngestService{
		tests:    deps.Tests,
		catalog:  deps.Catalog,
		students: deps.Students,
		results:  deps.Results,
		tx:       deps.Tx,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Upload ingests a spreadsheet of answers for one test. Missing required columns reject the
// whole file before any write. Every data row is then committed in its own transaction; a
// failing row is reported and the rest continue.
func (s *IngestService) Upload(ctx context.Context, scope models.AccessScope, testID, filename string, size int64, r io.Reader) (*models.IngestSummary, error) {
	start := time.Now()
	if !s.allowed(filename) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, fmt.Sprintf("unsupported file type %q", spreadsheet.Extension(filename)))
	}
	if size > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	test, err := s.tests.Get(ctx, scope, testID)
	if err != nil {
		return nil, err
	}
	base, err := s.catalog.Class(ctx, scope, test.ClassID)
	if err != nil {
		return nil, err
	}
	// answer columns resolve against every subject of the school, not only the tested set
	byAbbr, err := s.catalog.SubjectAbbreviationMap(ctx, test.SchoolID)
	if err != nil {
		return nil, err
	}

	workbook, err := spreadsheet.Read(filename, io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
			return nil, appErrors.ErrUnsupportedFile
		}
		return nil, validationError(err, "could not read spreadsheet")
	}
	sheets, err := checkSchema(workbook)
	if err != nil {
		return nil, err
	}

	resolve := func(abbr string) (string, bool) {
		subject, ok := byAbbr[abbr]
		return subject.ID, ok
	}

	summary := &models.IngestSummary{
		GatTestID:     test.ID,
		ProcessedList: []string{},
		SkippedList:   []string{},
		Errors:        []string{},
		Sheets:        len(sheets),
	}
	if detected, ok := spreadsheet.DetectDate(filename, workbook); ok {
		summary.DetectedTestDate = &detected
		summary.TestDateMismatch = !sameDay(detected, test.TestDate)
		if summary.TestDateMismatch {
			s.logger.Warn("spreadsheet date differs from test date",
				zap.String("gat_test_id", test.ID),
				zap.Time("detected", detected),
				zap.Time("test_date", test.TestDate),
			)
		}
	}
	for _, sheet := range sheets {
		s.ingestSheet(ctx, test, base, sheet, scoring.PlanColumns(sheet.Header, resolve), summary)
	}
	summary.ProcessedCount = len(summary.ProcessedList)
	summary.SkippedCount = len(summary.SkippedList)

	if summary.ProcessedCount > 0 {
		s.cache.InvalidateReports(ctx)
	}
	s.metrics.RecordIngestion(summary.ProcessedCount, summary.SkippedCount, len(summary.Errors), time.Since(start))
	s.logger.Info("spreadsheet ingested",
		zap.String("gat_test_id", test.ID),
		zap.String("filename", filename),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (s *IngestService) ingestSheet(ctx context.Context, test *models.GatTestDetail, base *models.SchoolClass, sheet spreadsheet.Sheet, plan []scoring.AnswerColumn, summary *models.IngestSummary) {
	codeIdx := sheet.Column(ColumnCode)
	surnameIdx := sheet.Column(ColumnSurname)
	nameIdx := sheet.Column(ColumnName)
	sectionIdx := sheet.Column(ColumnSection)

	for i, row := range sheet.Rows {
		rowNum := sheet.Line(i)
		code := scoring.NormalizeStudentCode(spreadsheet.Cell(row, codeIdx))
		if code == "" {
			summary.SkippedList = append(summary.SkippedList, fmt.Sprintf("row %d: empty code", rowNum))
			continue
		}
		if !validStudentCode(code) {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Error in row %d: invalid student code %q", rowNum, code))
			continue
		}
		student := &models.Student{
			StudentCode: code,
			LastName:    spreadsheet.Cell(row, surnameIdx),
			FirstName:   spreadsheet.Cell(row, nameIdx),
			ClassID:     base.ID,
		}
		section := spreadsheet.Cell(row, sectionIdx)
		sheetScores := scoring.BuildScoreSheet(plan, row)

		var created *models.SchoolClass
		err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
			if section != "" {
				class, inserted, err := s.catalog.GetOrCreateSubclass(ctx, tx, test.SchoolID, base.Name+section, base.ID)
				if err != nil {
					return fmt.Errorf("resolve class %s%s: %w", base.Name, section, err)
				}
				if inserted {
					created = class
				}
				student.ClassID = class.ID
			}
			if _, err := s.students.UpsertByCode(ctx, tx, student); err != nil {
				return err
			}
			return s.results.Upsert(ctx, tx, &models.StudentResult{
				StudentID:  student.ID,
				GatTestID:  test.ID,
				Scores:     sheetScores,
				TotalScore: scoring.TotalScore(sheetScores),
			})
		})
		if err != nil {
			s.logger.Warn("spreadsheet row failed", zap.String("gat_test_id", test.ID), zap.Int("row", rowNum), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("Error in row %d: %v", rowNum, err))
			continue
		}
		if created != nil {
			summary.CreatedClasses = append(summary.CreatedClasses, created.Name)
		}
		summary.ProcessedList = append(summary.ProcessedList, fmt.Sprintf("%s %s", code, student.FullName()))
	}
}

// ImportStudents loads a student roster (code, class, surname, name) into a school. Classes are
// matched by name and never created; students are upserted by code.
func (s *IngestService) ImportStudents(ctx context.Context, scope models.AccessScope, schoolID, filename string, size int64, r io.Reader) (*models.RosterSummary, error) {
	if !s.allowed(filename) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, fmt.Sprintf("unsupported file type %q", spreadsheet.Extension(filename)))
	}
	if size > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	classes, err := s.catalog.ListClasses(ctx, scope, schoolID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.SchoolClass, len(classes))
	for _, class := range classes {
		byName[strings.ToUpper(strings.TrimSpace(class.Name))] = class
	}

	workbook, err := spreadsheet.Read(filename, io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
			return nil, appErrors.ErrUnsupportedFile
		}
		return nil, validationError(err, "could not read spreadsheet")
	}
	var sheet *spreadsheet.Sheet
	for i := range workbook.Sheets {
		if len(workbook.Sheets[i].Header) > 0 {
			sheet = &workbook.Sheets[i]
			break
		}
	}
	if sheet == nil {
		return nil, appErrors.WithDetails(appErrors.ErrSchema, "spreadsheet is empty", map[string]interface{}{"missing": rosterColumnNames(rosterColumns)})
	}
	missing := make([]string, 0)
	for _, aliases := range rosterColumns {
		if sheet.Column(aliases...) < 0 {
			missing = append(missing, aliases[0])
		}
	}
	if len(missing) > 0 {
		message := fmt.Sprintf("roster is missing required columns: %s", strings.Join(missing, ", "))
		return nil, appErrors.WithDetails(appErrors.ErrSchema, message, map[string]interface{}{"missing": missing})
	}

	codeIdx := sheet.Column(rosterCode...)
	classIdx := sheet.Column(rosterClass...)
	surnameIdx := sheet.Column(rosterSurname...)
	nameIdx := sheet.Column(rosterName...)
	summary := &models.RosterSummary{SkippedList: []string{}, Errors: []string{}}
	for i, row := range sheet.Rows {
		rowNum := sheet.Line(i)
		code := scoring.NormalizeStudentCode(spreadsheet.Cell(row, codeIdx))
		className := spreadsheet.Cell(row, classIdx)
		if code == "" || className == "" {
			summary.SkippedList = append(summary.SkippedList, fmt.Sprintf("row %d: empty code or class", rowNum))
			continue
		}
		if !validStudentCode(code) {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Error in row %d: invalid student code %q", rowNum, code))
			continue
		}
		class, ok := byName[strings.ToUpper(className)]
		if !ok {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Error in row %d: class %q not found", rowNum, className))
			continue
		}
		student := &models.Student{
			StudentCode: code,
			LastName:    spreadsheet.Cell(row, surnameIdx),
			FirstName:   spreadsheet.Cell(row, nameIdx),
			ClassID:     class.ID,
			Status:      models.StudentStatusActive,
		}
		var inserted bool
		err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			inserted, err = s.students.UpsertByCode(ctx, tx, student)
			return err
		})
		if err != nil {
			s.logger.Warn("roster row failed", zap.String("school_id", schoolID), zap.Int("row", rowNum), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("Error in row %d: %v", rowNum, err))
			continue
		}
		if inserted {
			summary.Created++
		} else {
			summary.Updated++
		}
	}
	summary.Skipped = len(summary.SkippedList)

	if summary.Created+summary.Updated > 0 {
		s.cache.InvalidateReports(ctx)
	}
	s.logger.Info("student roster imported",
		zap.String("school_id", schoolID),
		zap.String("filename", filename),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func rosterColumnNames(columns [][]string) []string {
	names := make([]string, len(columns))
	for i, aliases := range columns {
		names[i] = aliases[0]
	}
	return names
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *IngestService) allowed(filename string) bool {
	ext := spreadsheet.Extension(filename)
	for _, allowed := range s.cfg.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// checkSchema returns the non-empty sheets of the workbook, failing with ErrSchema when any of
// them lacks a required column.
func checkSchema(workbook *spreadsheet.Workbook) ([]spreadsheet.Sheet, error) {
	sheets := make([]spreadsheet.Sheet, 0, len(workbook.Sheets))
	for _, sheet := range workbook.Sheets {
		if len(sheet.Header) == 0 && len(sheet.Rows) == 0 {
			continue
		}
		sheets = append(sheets, sheet)
	}
	if len(sheets) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrSchema, "spreadsheet is empty", map[string]interface{}{"missing": requiredColumns})
	}
	for _, sheet := range sheets {
		missing := make([]string, 0)
		for _, column := range requiredColumns {
			if sheet.Column(column) < 0 {
				missing = append(missing, column)
			}
		}
		if len(missing) > 0 {
			message := fmt.Sprintf("sheet %q is missing required columns: %s", sheet.Name, strings.Join(missing, ", "))
			return nil, appErrors.WithDetails(appErrors.ErrSchema, message, map[string]interface{}{"sheet": sheet.Name, "missing": missing})
		}
	}
	return sheets, nil
}

// validStudentCode accepts codes made of digits only.
func validStudentCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
