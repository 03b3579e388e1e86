package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
)

type gatTestStore interface {
	List(ctx context.Context, filter models.GatTestFilter) ([]models.GatTestDetail, error)
	FindByID(ctx context.Context, id string) (*models.GatTestDetail, error)
	Create(ctx context.Context, test *models.GatTest) error
	Update(ctx context.Context, test *models.GatTest) error
	Delete(ctx context.Context, id string) error
}

type resultStore interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRow, error)
	DeleteByTest(ctx context.Context, gatTestID string) (int64, error)
}

// TestRegistryService manages test administrations and resolves what each test measures.
type TestRegistryService struct {
	tests         gatTestStore
	results       resultStore
	classes       classStore
	subjects      subjectStore
	classSubjects classSubjectStore
	academic      academicStore
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
}

// RegistryStores groups the repositories used by TestRegistryService.
type RegistryStores struct {
	Tests         gatTestStore
	Results       resultStore
	Classes       classStore
	Subjects      subjectStore
	ClassSubjects classSubjectStore
	Academic      academicStore
}

// NewTestRegistryService constructs a TestRegistryService.
func NewTestRegistryService(stores RegistryStores, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TestRegistryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestRegistryService{
		tests:         stores.Tests,
		results:       stores.Results,
		classes:       stores.Classes,
		subjects:      stores.Subjects,
		classSubjects: stores.ClassSubjects,
		academic:      stores.Academic,
		cache:         cache,
		validator:     validate,
		logger:        logger,
	}
}

// List returns the tests visible in scope.
func (s *TestRegistryService) List(ctx context.Context, scope models.AccessScope, filter models.GatTestFilter) ([]models.GatTestDetail, error) {
	filter.AllSchools = scope.All
	if !scope.All {
		filter.SchoolIDs = scope.SchoolIDs
	}
	tests, err := s.tests.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list gat tests")
	}
	return tests, nil
}

// Get fetches a test visible in scope.
func (s *TestRegistryService) Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error) {
	test, err := s.tests.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "gat test")
	}
	if !scope.Allows(test.SchoolID) {
		return nil, forbidden("gat test is outside your scope")
	}
	return test, nil
}

// Create registers a test administration.
func (s *TestRegistryService) Create(ctx context.Context, scope models.AccessScope, req dto.GatTestRequest) (*models.GatTestDetail, error) {
	test, err := s.buildTest(ctx, scope, req)
	if err != nil {
		return nil, err
	}
	if err := s.tests.Create(ctx, test); err != nil {
		return nil, saveError(err, "gat test")
	}
	s.logger.Info("gat test created", zap.String("gat_test_id", test.ID), zap.String("school_id", test.SchoolID))
	return s.Get(ctx, scope, test.ID)
}

// Update rewrites a test administration, replacing its subject set.
func (s *TestRegistryService) Update(ctx context.Context, scope models.AccessScope, id string, req dto.GatTestRequest) (*models.GatTestDetail, error) {
	existing, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	test, err := s.buildTest(ctx, scope, req)
	if err != nil {
		return nil, err
	}
	test.ID = existing.ID
	test.CreatedAt = existing.CreatedAt
	if err := s.tests.Update(ctx, test); err != nil {
		return nil, saveError(err, "gat test")
	}
	s.cache.InvalidateReports(ctx)
	return s.Get(ctx, scope, id)
}

// Delete removes a test with its results.
func (s *TestRegistryService) Delete(ctx context.Context, scope models.AccessScope, id string) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	if err := s.tests.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete gat test")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("gat test deleted", zap.String("gat_test_id", id))
	return nil
}

// DeleteResults removes every result of a test and returns how many were removed.
func (s *TestRegistryService) DeleteResults(ctx context.Context, scope models.AccessScope, id string) (int64, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return 0, err
	}
	deleted, err := s.results.DeleteByTest(ctx, id)
	if err != nil {
		return 0, internalError(err, "failed to delete results")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("gat test results deleted", zap.String("gat_test_id", id), zap.Int64("deleted", deleted))
	return deleted, nil
}

func (s *TestRegistryService) buildTest(ctx context.Context, scope models.AccessScope, req dto.GatTestRequest) (*models.GatTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid gat test payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	if !scope.Allows(class.SchoolID) {
		return nil, forbidden("class is outside your scope")
	}
	if !class.IsParallel() {
		return nil, invalid("a gat test must target a parallel class")
	}
	quarter, err := s.academic.FindQuarter(ctx, req.QuarterID)
	if err != nil {
		return nil, lookupError(err, "quarter")
	}
	if !quarter.Contains(req.TestDate) {
		return nil, invalid("test date must fall inside the quarter")
	}
	subjectIDs := uniqueStrings(req.SubjectIDs)
	if len(subjectIDs) > 0 {
		subjects, err := s.subjects.ListByIDs(ctx, subjectIDs)
		if err != nil {
			return nil, internalError(err, "failed to load subjects")
		}
		valid := 0
		for _, subject := range subjects {
			if subject.SchoolID == class.SchoolID {
				valid++
			}
		}
		if valid != len(subjectIDs) {
			return nil, invalid("every subject must belong to the class's school")
		}
	}
	return &models.GatTest{
		Name:       strings.TrimSpace(req.Name),
		TestNumber: req.TestNumber,
		Day:        req.Day,
		TestDate:   req.TestDate,
		QuarterID:  quarter.ID,
		ClassID:    class.ID,
		SchoolID:   class.SchoolID,
		SubjectIDs: subjectIDs,
	}, nil
}

// SubjectsFor returns the subjects a test measures: its subject set, or every subject of its
// school when the set is empty.
func (s *TestRegistryService) SubjectsFor(ctx context.Context, test *models.GatTestDetail) ([]models.Subject, error) {
	var (
		subjects []models.Subject
		err      error
	)
	if len(test.SubjectIDs) > 0 {
		subjects, err = s.subjects.ListByIDs(ctx, test.SubjectIDs)
	} else {
		subjects, err = s.subjects.ListBySchool(ctx, test.SchoolID)
	}
	if err != nil {
		return nil, internalError(err, "failed to load test subjects")
	}
	return subjects, nil
}

// ExpectedTable loads the configured question counts of the classes and their parents.
func (s *TestRegistryService) ExpectedTable(ctx context.Context, classIDs []string) (*scoring.ExpectedTable, error) {
	table := scoring.NewExpectedTable()
	classIDs = uniqueStrings(classIDs)
	if len(classIDs) == 0 {
		return table, nil
	}
	classes, err := s.classes.ListByIDs(ctx, classIDs)
	if err != nil {
		return nil, internalError(err, "failed to load classes")
	}
	all := append([]string(nil), classIDs...)
	for _, class := range classes {
		if !class.IsParallel() {
			table.SetParent(class.ID, *class.ParentID)
			all = append(all, *class.ParentID)
		}
	}
	rows, err := s.classSubjects.ListForClasses(ctx, uniqueStrings(all))
	if err != nil {
		return nil, internalError(err, "failed to load question counts")
	}
	for _, row := range rows {
		table.Set(row.ClassID, row.SubjectID, row.NumberOfQuestions)
	}
	return table, nil
}

// ExpectedQuestionCount returns the configured count on the class, else on its parent, else 0.
func (s *TestRegistryService) ExpectedQuestionCount(ctx context.Context, classID, subjectID string) (int, error) {
	table, err := s.ExpectedTable(ctx, []string{classID})
	if err != nil {
		return 0, err
	}
	return table.Expected(classID, subjectID), nil
}

// ExpectedCounts lists the resolved question counts of every subject of the class's school
// that has one.
func (s *TestRegistryService) ExpectedCounts(ctx context.Context, scope models.AccessScope, classID string) ([]models.ExpectedCount, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	if !scope.Allows(class.SchoolID) {
		return nil, forbidden("class is outside your scope")
	}
	subjects, err := s.subjects.ListBySchool(ctx, class.SchoolID)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	table, err := s.ExpectedTable(ctx, []string{classID})
	if err != nil {
		return nil, err
	}
	counts := make([]models.ExpectedCount, 0, len(subjects))
	for _, subject := range subjects {
		n, inherited := table.Resolve(classID, subject.ID)
		if n == 0 {
			continue
		}
		counts = append(counts, models.ExpectedCount{SubjectID: subject.ID, SubjectName: subject.Name, NumberOfQuestions: n, Inherited: inherited})
	}
	return counts, nil
}

// ValidateQuestionCounts compares, per tested subject, the expected count of the test's class
// with the highest question number present in its results.
func (s *TestRegistryService) ValidateQuestionCounts(ctx context.Context, scope models.AccessScope, testID string) ([]models.QuestionCountWarning, error) {
	test, err := s.Get(ctx, scope, testID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.SubjectsFor(ctx, test)
	if err != nil {
		return nil, err
	}
	rows, err := s.results.List(ctx, models.ResultFilter{Scope: scope, GatTestIDs: []string{testID}})
	if err != nil {
		return nil, internalError(err, "failed to load results")
	}
	table, err := s.ExpectedTable(ctx, []string{test.ClassID})
	if err != nil {
		return nil, err
	}
	actual := map[string]int{}
	for _, row := range rows {
		for subjectID, answers := range row.Scores {
			if n := answers.MaxQuestion(); n > actual[subjectID] {
				actual[subjectID] = n
			}
		}
	}
	warnings := make([]models.QuestionCountWarning, 0)
	for _, subject := range subjects {
		got, ok := actual[subject.ID]
		if !ok {
			continue
		}
		expected := table.Expected(test.ClassID, subject.ID)
		if expected != got {
			warnings = append(warnings, models.QuestionCountWarning{SubjectID: subject.ID, SubjectName: subject.Name, Expected: expected, Actual: got})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].SubjectName < warnings[j].SubjectName })
	return warnings, nil
}

// subjectRefs converts subjects to report references ordered by name.
func subjectRefs(subjects []models.Subject) []scoring.SubjectRef {
	refs := make([]scoring.SubjectRef, 0, len(subjects))
	for _, subject := range subjects {
		refs = append(refs, scoring.SubjectRef{ID: subject.ID, Name: subject.Name})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}
