package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
	"github.com/zafarze/gat-sub000/pkg/cache"
)

const topStudentsLimit = 10

type analyticsTests interface {
	Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error)
	List(ctx context.Context, scope models.AccessScope, filter models.GatTestFilter) ([]models.GatTestDetail, error)
	SubjectsFor(ctx context.Context, test *models.GatTestDetail) ([]models.Subject, error)
	ExpectedTable(ctx context.Context, classIDs []string) (*scoring.ExpectedTable, error)
}

type analyticsStudents interface {
	Student(ctx context.Context, scope models.AccessScope, id string) (*models.Student, string, error)
}

type resultLister interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRow, error)
}

type subjectLister interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

// AnalyticsConfig tunes report computations.
type AnalyticsConfig struct {
	PercentMode      scoring.PercentMode
	AtRiskThreshold  float64
	ProblematicLimit int
}

// AnalyticsService loads scoped result rows and runs the scoring aggregations over them.
// Every report is cached per scope and filter.
type AnalyticsService struct {
	tests    analyticsTests
	students analyticsStudents
	results  resultLister
	subjects subjectLister
	cache    *CacheService
	cfg      AnalyticsConfig
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(tests analyticsTests, students analyticsStudents, results resultLister, subjects subjectLister, cache *CacheService, cfg AnalyticsConfig, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PercentMode == "" {
		cfg.PercentMode = scoring.PercentAnswered
	}
	if cfg.AtRiskThreshold <= 0 {
		cfg.AtRiskThreshold = 40
	}
	if cfg.ProblematicLimit <= 0 {
		cfg.ProblematicLimit = 3
	}
	return &AnalyticsService{tests: tests, students: students, results: results, subjects: subjects, cache: cache, cfg: cfg, logger: logger}
}

// TestResults ranks the results of one test. Placements are computed over every visible
// result of the test; a student scope only narrows the returned rows.
func (s *AnalyticsService) TestResults(ctx context.Context, scope models.AccessScope, testID string) (*dto.TestResultsReport, error) {
	test, err := s.tests.Get(ctx, scope, testID)
	if err != nil {
		return nil, err
	}
	key := cache.Key("test-results", scopeParams(scope, map[string]string{"test": testID}))
	return remember(ctx, s.cache, key, func() (*dto.TestResultsReport, error) {
		cohort, err := s.results.List(ctx, models.ResultFilter{Scope: cohortScope(scope), GatTestIDs: []string{testID}})
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		subjects, err := s.tests.SubjectsFor(ctx, test)
		if err != nil {
			return nil, err
		}
		expected, err := s.tests.ExpectedTable(ctx, append(classIDs(cohort), test.ClassID))
		if err != nil {
			return nil, err
		}
		table := scoring.TestResultsTable(onlyStudent(cohort, scope.StudentID), cohort, subjectRefs(subjects), test.ClassID, expected, s.cfg.PercentMode)
		return &dto.TestResultsReport{Test: *test, Table: table}, nil
	})
}

// Comparison compares every student across two tests.
func (s *AnalyticsService) Comparison(ctx context.Context, scope models.AccessScope, firstID, secondID string) (*dto.ComparisonResponse, error) {
	if firstID == "" || secondID == "" {
		return nil, invalid("two tests are required")
	}
	if firstID == secondID {
		return nil, invalid("select two different tests")
	}
	first, err := s.tests.Get(ctx, scope, firstID)
	if err != nil {
		return nil, err
	}
	second, err := s.tests.Get(ctx, scope, secondID)
	if err != nil {
		return nil, err
	}
	key := cache.Key("comparison", scopeParams(scope, map[string]string{"first": firstID, "second": secondID}))
	return remember(ctx, s.cache, key, func() (*dto.ComparisonResponse, error) {
		firstRows, err := s.results.List(ctx, models.ResultFilter{Scope: cohortScope(scope), GatTestIDs: []string{firstID}})
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		secondRows, err := s.results.List(ctx, models.ResultFilter{Scope: cohortScope(scope), GatTestIDs: []string{secondID}})
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		report := scoring.Compare(studentScores(firstRows), studentScores(secondRows))
		if scope.StudentID != "" {
			filtered := report.Rows[:0]
			for _, row := range report.Rows {
				if row.StudentID == scope.StudentID {
					filtered = append(filtered, row)
				}
			}
			report.Rows = filtered
		}
		return &dto.ComparisonResponse{First: *first, Second: *second, Combined: combinedDays(first, second), Report: report}, nil
	})
}

// GradeDistribution counts grades per subject and class.
func (s *AnalyticsService) GradeDistribution(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*scoring.GradeDistributionReport, error) {
	key := cache.Key("grade-distribution", scopeParams(scope, filter.CacheParams()))
	return remember(ctx, s.cache, key, func() (*scoring.GradeDistributionReport, error) {
		data, err := s.load(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		report := scoring.GradeDistribution(data.rows, data.subjects, data.expected, s.cfg.PercentMode)
		return &report, nil
	})
}

// Difficulty reports per question correctness, the weakest questions and the subject board.
func (s *AnalyticsService) Difficulty(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*dto.DifficultyReport, error) {
	key := cache.Key("difficulty", scopeParams(scope, filter.CacheParams()))
	return remember(ctx, s.cache, key, func() (*dto.DifficultyReport, error) {
		data, err := s.load(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		stats := scoring.QuestionDifficulty(sheets(data.rows), data.subjects)
		return &dto.DifficultyReport{
			Subjects:    stats,
			Problematic: scoring.ProblematicQuestions(stats, 0, s.cfg.ProblematicLimit),
			Leaderboard: scoring.SubjectLeaderboard(stats),
		}, nil
	})
}

// DeepAnalysis compares schools per subject and question, with trend and at-risk students.
func (s *AnalyticsService) DeepAnalysis(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*scoring.DeepAnalysisReport, error) {
	key := cache.Key("deep-analysis", scopeParams(scope, filter.CacheParams()))
	return remember(ctx, s.cache, key, func() (*scoring.DeepAnalysisReport, error) {
		data, err := s.load(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		report := scoring.DeepAnalysis(data.rows, data.subjects, s.cfg.ProblematicLimit, s.cfg.AtRiskThreshold)
		return &report, nil
	})
}

// Monitoring builds the student by subject matrix, with grades instead of scores when grading.
func (s *AnalyticsService) Monitoring(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter, grading bool) (*scoring.MonitoringReport, error) {
	params := filter.CacheParams()
	if grading {
		params["grading"] = "1"
	}
	key := cache.Key("monitoring", scopeParams(scope, params))
	return remember(ctx, s.cache, key, func() (*scoring.MonitoringReport, error) {
		data, err := s.load(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		report := scoring.MonitoringMatrix(data.rows, data.subjects, data.expected, s.cfg.PercentMode, grading)
		return &report, nil
	})
}

// StudentProgress lists every result of a student with subject breakdown and placements.
func (s *AnalyticsService) StudentProgress(ctx context.Context, scope models.AccessScope, studentID string) (*dto.StudentProgressReport, error) {
	student, schoolID, err := s.students.Student(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	key := cache.Key("student-progress", scopeParams(scope, map[string]string{"student": studentID}))
	return remember(ctx, s.cache, key, func() (*dto.StudentProgressReport, error) {
		schoolScope := models.AccessScope{SchoolIDs: []string{schoolID}}
		own, err := s.results.List(ctx, models.ResultFilter{Scope: schoolScope, StudentID: studentID})
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		report := &dto.StudentProgressReport{Student: *student, Results: []dto.StudentTestProgress{}}
		if len(own) == 0 {
			return report, nil
		}

		testIDs := make([]string, 0, len(own))
		for _, row := range own {
			testIDs = append(testIDs, row.GatTestID)
		}
		cohort, err := s.results.List(ctx, models.ResultFilter{Scope: schoolScope, GatTestIDs: uniqueStrings(testIDs)})
		if err != nil {
			return nil, internalError(err, "failed to load results")
		}
		byTest := map[string][]models.ResultRow{}
		for _, row := range cohort {
			byTest[row.GatTestID] = append(byTest[row.GatTestID], row)
		}
		subjects, err := s.subjectsOf(ctx, own, nil)
		if err != nil {
			return nil, err
		}
		expected, err := s.tests.ExpectedTable(ctx, classIDs(own))
		if err != nil {
			return nil, err
		}

		sort.SliceStable(own, func(i, j int) bool { return own[i].TestDate.Before(own[j].TestDate) })
		for _, row := range own {
			placements := scoring.Placements(byTest[row.GatTestID])
			results := scoring.SubjectResults(row.Scores, subjects, row.ClassID, expected, s.cfg.PercentMode)
			best, worst := scoring.BestWorstSubject(results)
			pct, grade := sheetScore(row, expected)
			report.Results = append(report.Results, dto.StudentTestProgress{
				ResultID:    row.ResultID,
				GatTestID:   row.GatTestID,
				TestName:    row.TestName,
				TestNumber:  row.TestNumber,
				Day:         row.Day,
				TestDate:    row.TestDate,
				QuarterName: row.QuarterName,
				TotalScore:  row.TotalScore,
				Percentage:  pct,
				Grade:       grade,
				Subjects:    results,
				Best:        best,
				Worst:       worst,
				Placement:   placements[row.ResultID],
			})
		}
		return report, nil
	})
}

// Dashboard summarises the filtered results.
func (s *AnalyticsService) Dashboard(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*dto.DashboardReport, error) {
	key := cache.Key("dashboard", scopeParams(scope, filter.CacheParams()))
	return remember(ctx, s.cache, key, func() (*dto.DashboardReport, error) {
		data, err := s.load(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		report := &dto.DashboardReport{
			ScoreDistribution: scoring.ScoreDistribution(totals(data.rows)),
			SubjectPerformance: scoring.SubjectLeaderboard(
				scoring.QuestionDifficulty(sheets(data.rows), data.subjects)),
			TopStudents:        topStudents(data.rows, data.expected, topStudentsLimit),
			AtRisk:             scoring.AtRiskStudents(data.rows, s.cfg.AtRiskThreshold),
			TestsWithoutResult: []models.GatTestDetail{},
		}
		report.Stats = dashboardStats(data.rows, data.expected)

		testFilter := models.GatTestFilter{}
		if len(filter.QuarterIDs) == 1 {
			testFilter.QuarterID = filter.QuarterIDs[0]
		}
		tests, err := s.tests.List(ctx, scope, testFilter)
		if err != nil {
			return nil, err
		}
		for _, test := range tests {
			if test.ResultCount == 0 {
				report.TestsWithoutResult = append(report.TestsWithoutResult, test)
			}
		}
		return report, nil
	})
}

type reportData struct {
	rows     []models.ResultRow
	subjects []scoring.SubjectRef
	expected *scoring.ExpectedTable
}

func (s *AnalyticsService) load(ctx context.Context, scope models.AccessScope, filter dto.ReportFilter) (*reportData, error) {
	rows, err := s.results.List(ctx, models.ResultFilter{
		Scope:       scope,
		GatTestIDs:  filter.GatTestIDs,
		QuarterIDs:  filter.QuarterIDs,
		SchoolIDs:   filter.SchoolIDs,
		ClassIDs:    filter.ClassIDs,
		TestNumbers: filter.TestNumbers,
		Days:        filter.Days,
	})
	if err != nil {
		return nil, internalError(err, "failed to load results")
	}
	subjects, err := s.subjectsOf(ctx, rows, filter.SubjectIDs)
	if err != nil {
		return nil, err
	}
	if len(filter.SubjectIDs) > 0 {
		rows = restrictSubjects(rows, filter.SubjectIDs)
	}
	expected, err := s.tests.ExpectedTable(ctx, classIDs(rows))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("report rows loaded", zap.Int("rows", len(rows)), zap.Int("subjects", len(subjects)))
	return &reportData{rows: rows, subjects: subjects, expected: expected}, nil
}

// subjectsOf resolves the requested subjects, or every subject present in the rows.
func (s *AnalyticsService) subjectsOf(ctx context.Context, rows []models.ResultRow, requested []string) ([]scoring.SubjectRef, error) {
	ids := requested
	if len(ids) == 0 {
		for _, row := range rows {
			ids = append(ids, row.Scores.SubjectIDs()...)
		}
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return []scoring.SubjectRef{}, nil
	}
	subjects, err := s.subjects.ListByIDs(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load subjects")
	}
	return subjectRefs(subjects), nil
}

func restrictSubjects(rows []models.ResultRow, subjectIDs []string) []models.ResultRow {
	keep := make(map[string]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		keep[id] = struct{}{}
	}
	out := make([]models.ResultRow, 0, len(rows))
	for _, row := range rows {
		sheet := models.ScoreSheet{}
		for id, answers := range row.Scores {
			if _, ok := keep[id]; ok {
				sheet[id] = answers
			}
		}
		if len(sheet) == 0 {
			continue
		}
		row.Scores = sheet
		row.TotalScore = sheet.Total()
		out = append(out, row)
	}
	return out
}

// sheetScore grades a result against its expected maximum, falling back to the answered
// questions when the class has no configured counts.
func sheetScore(row models.ResultRow, expected scoring.ExpectedLookup) (float64, int) {
	pct, grade := scoring.SheetGrade(row.Scores, row.ClassID, expected)
	if grade == 0 {
		pct = scoring.Percentage(row.Scores.Total(), row.Scores.Answered())
		grade = scoring.GradeFromPercentage(pct)
	}
	return pct, grade
}

func dashboardStats(rows []models.ResultRow, expected scoring.ExpectedLookup) dto.DashboardStats {
	students := map[string]struct{}{}
	tests := map[string]struct{}{}
	var sum float64
	for _, row := range rows {
		students[row.StudentID] = struct{}{}
		tests[row.GatTestID] = struct{}{}
		pct, _ := sheetScore(row, expected)
		sum += pct
	}
	stats := dto.DashboardStats{Students: len(students), Tests: len(tests), Results: len(rows)}
	if len(rows) > 0 {
		stats.AveragePercentage = scoring.Round1(sum / float64(len(rows)))
	}
	return stats
}

func topStudents(rows []models.ResultRow, expected scoring.ExpectedLookup, limit int) []dto.TopStudent {
	type acc struct {
		student dto.TopStudent
		sum     float64
		n       int
	}
	order := make([]string, 0)
	byStudent := map[string]*acc{}
	for _, row := range rows {
		a, ok := byStudent[row.StudentID]
		if !ok {
			a = &acc{student: dto.TopStudent{StudentID: row.StudentID, Name: row.StudentName(), ClassName: row.ClassName, SchoolName: row.SchoolName}}
			byStudent[row.StudentID] = a
			order = append(order, row.StudentID)
		}
		pct, _ := sheetScore(row, expected)
		a.sum += pct
		a.n++
	}
	out := make([]dto.TopStudent, 0, len(order))
	for _, id := range order {
		a := byStudent[id]
		a.student.Percentage = scoring.Round1(a.sum / float64(a.n))
		a.student.Grade = scoring.GradeFromPercentage(a.student.Percentage)
		out = append(out, a.student)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func studentScores(rows []models.ResultRow) []scoring.StudentScore {
	out := make([]scoring.StudentScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.StudentScore{
			StudentID:   row.StudentID,
			StudentCode: row.StudentCode,
			Name:        row.StudentName(),
			ClassName:   row.ClassName,
			Score:       row.TotalScore,
		})
	}
	return out
}

// combinedDays reports whether two tests are the two days of one administration.
func combinedDays(a, b *models.GatTestDetail) bool {
	return a.QuarterID == b.QuarterID && a.ClassID == b.ClassID && a.TestNumber == b.TestNumber &&
		a.DayNumber() != 0 && b.DayNumber() != 0 && a.DayNumber() != b.DayNumber()
}

func sheets(rows []models.ResultRow) []models.ScoreSheet {
	out := make([]models.ScoreSheet, len(rows))
	for i, row := range rows {
		out[i] = row.Scores
	}
	return out
}

func totals(rows []models.ResultRow) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.TotalScore
	}
	return out
}

func classIDs(rows []models.ResultRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ClassID)
	}
	return ids
}

func onlyStudent(rows []models.ResultRow, studentID string) []models.ResultRow {
	if studentID == "" {
		return rows
	}
	out := make([]models.ResultRow, 0, 1)
	for _, row := range rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out
}

// cohortScope drops the student restriction so ranks are computed over the whole population.
func cohortScope(scope models.AccessScope) models.AccessScope {
	scope.StudentID = ""
	return scope
}

func scopeParams(scope models.AccessScope, params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	if scope.All {
		out["scope"] = "all"
	} else {
		out["scope"] = strings.Join(uniqueStrings(scope.SchoolIDs), ",")
		if out["scope"] == "" {
			out["scope"] = "none"
		}
	}
	if scope.StudentID != "" {
		out["student_scope"] = scope.StudentID
	}
	return out
}
