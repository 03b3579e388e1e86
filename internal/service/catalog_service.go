package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
)

type schoolStore interface {
	List(ctx context.Context, scope models.AccessScope) ([]models.School, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
}

type academicStore interface {
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	FindYear(ctx context.Context, id string) (*models.AcademicYear, error)
	YearOverlaps(ctx context.Context, start, end time.Time, excludeID string) (bool, error)
	CreateYear(ctx context.Context, year *models.AcademicYear) error
	ListQuarters(ctx context.Context, yearID string) ([]models.Quarter, error)
	FindQuarter(ctx context.Context, id string) (*models.Quarter, error)
	CreateQuarter(ctx context.Context, quarter *models.Quarter) error
}

type classStore interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.SchoolClass, error)
	FindByID(ctx context.Context, id string) (*models.SchoolClass, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.SchoolClass, error)
	Create(ctx context.Context, class *models.SchoolClass) error
	GetOrCreate(ctx context.Context, q sqlx.ExtContext, schoolID, name string, parentID *string) (*models.SchoolClass, bool, error)
}

type subjectStore interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
}

type classSubjectStore interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error)
	ListForClasses(ctx context.Context, classIDs []string) ([]models.ClassSubject, error)
	Upsert(ctx context.Context, classID string, items []models.ClassSubject) error
}

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SchoolOf(ctx context.Context, studentID string) (string, error)
	Create(ctx context.Context, student *models.Student) error
	UpsertByCode(ctx context.Context, q sqlx.ExtContext, student *models.Student) (bool, error)
}

// CatalogService manages schools, the academic calendar, classes, subjects and students.
type CatalogService struct {
	schools       schoolStore
	academic      academicStore
	classes       classStore
	subjects      subjectStore
	classSubjects classSubjectStore
	students      studentStore
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
}

// CatalogStores groups the repositories used by CatalogService.
type CatalogStores struct {
	Schools       schoolStore
	Academic      academicStore
	Classes       classStore
	Subjects      subjectStore
	ClassSubjects classSubjectStore
	Students      studentStore
}

// NewCatalogService constructs a CatalogService. Writes that change expected counts or the
// class tree drop cached reports through cache, which may be nil.
func NewCatalogService(stores CatalogStores, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		schools:       stores.Schools,
		academic:      stores.Academic,
		classes:       stores.Classes,
		subjects:      stores.Subjects,
		classSubjects: stores.ClassSubjects,
		students:      stores.Students,
		cache:         cache,
		validator:     validate,
		logger:        logger,
	}
}

// ListSchools returns the schools visible in scope.
func (s *CatalogService) ListSchools(ctx context.Context, scope models.AccessScope) ([]models.School, error) {
	schools, err := s.schools.List(ctx, scope)
	if err != nil {
		return nil, internalError(err, "failed to list schools")
	}
	return schools, nil
}

// CreateSchool adds a school.
func (s *CatalogService) CreateSchool(ctx context.Context, req dto.CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid school payload")
	}
	school := &models.School{Name: strings.TrimSpace(req.Name), Address: strings.TrimSpace(req.Address)}
	if err := s.schools.Create(ctx, school); err != nil {
		return nil, saveError(err, "school")
	}
	s.logger.Info("school created", zap.String("school_id", school.ID))
	return school, nil
}

// ListYears returns every academic year.
func (s *CatalogService) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.academic.ListYears(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list academic years")
	}
	return years, nil
}

// CreateYear adds an academic year that does not overlap any existing one.
func (s *CatalogService) CreateYear(ctx context.Context, req dto.CreateYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid academic year payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, invalid("start date must be before end date")
	}
	overlaps, err := s.academic.YearOverlaps(ctx, req.StartDate, req.EndDate, "")
	if err != nil {
		return nil, internalError(err, "failed to check academic year overlap")
	}
	if overlaps {
		return nil, invalid("academic year overlaps an existing year")
	}
	year := &models.AcademicYear{Name: strings.TrimSpace(req.Name), StartDate: req.StartDate, EndDate: req.EndDate}
	if err := s.academic.CreateYear(ctx, year); err != nil {
		return nil, saveError(err, "academic year")
	}
	return year, nil
}

// ListQuarters returns the quarters of a year ordered by start date.
func (s *CatalogService) ListQuarters(ctx context.Context, yearID string) ([]models.Quarter, error) {
	if _, err := s.academic.FindYear(ctx, yearID); err != nil {
		return nil, lookupError(err, "academic year")
	}
	quarters, err := s.academic.ListQuarters(ctx, yearID)
	if err != nil {
		return nil, internalError(err, "failed to list quarters")
	}
	return quarters, nil
}

// CreateQuarter adds a quarter lying inside its year.
func (s *CatalogService) CreateQuarter(ctx context.Context, yearID string, req dto.CreateQuarterRequest) (*models.Quarter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid quarter payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, invalid("start date must be before end date")
	}
	year, err := s.academic.FindYear(ctx, yearID)
	if err != nil {
		return nil, lookupError(err, "academic year")
	}
	if !year.Contains(req.StartDate) || !year.Contains(req.EndDate) {
		return nil, invalid("quarter must lie within its academic year")
	}
	quarter := &models.Quarter{YearID: yearID, Name: strings.TrimSpace(req.Name), StartDate: req.StartDate, EndDate: req.EndDate}
	if err := s.academic.CreateQuarter(ctx, quarter); err != nil {
		return nil, saveError(err, "quarter")
	}
	return quarter, nil
}

// Quarter fetches a quarter.
func (s *CatalogService) Quarter(ctx context.Context, id string) (*models.Quarter, error) {
	quarter, err := s.academic.FindQuarter(ctx, id)
	if err != nil {
		return nil, lookupError(err, "quarter")
	}
	return quarter, nil
}

// ListClasses returns the classes of a school, parallels first.
func (s *CatalogService) ListClasses(ctx context.Context, scope models.AccessScope, schoolID string) ([]models.SchoolClass, error) {
	if !scope.Allows(schoolID) {
		return nil, forbidden("school is outside your scope")
	}
	classes, err := s.classes.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, internalError(err, "failed to list classes")
	}
	return classes, nil
}

// CreateClass adds a parallel class or, with a parent, one of its sections.
func (s *CatalogService) CreateClass(ctx context.Context, scope models.AccessScope, schoolID string, req dto.CreateClassRequest) (*models.SchoolClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	if !scope.Allows(schoolID) {
		return nil, forbidden("school is outside your scope")
	}
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		return nil, lookupError(err, "school")
	}
	class := &models.SchoolClass{SchoolID: schoolID, Name: strings.TrimSpace(req.Name)}
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.classes.FindByID(ctx, *req.ParentID)
		if err != nil {
			return nil, lookupError(err, "parent class")
		}
		if parent.SchoolID != schoolID {
			return nil, invalid("parent class belongs to another school")
		}
		if !parent.IsParallel() {
			return nil, invalid("parent class must be a parallel class")
		}
		class.ParentID = &parent.ID
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, saveError(err, "class")
	}
	s.cache.InvalidateReports(ctx)
	return class, nil
}

// Class fetches a class visible in scope.
func (s *CatalogService) Class(ctx context.Context, scope models.AccessScope, id string) (*models.SchoolClass, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	if !scope.Allows(class.SchoolID) {
		return nil, forbidden("class is outside your scope")
	}
	return class, nil
}

// GetOrCreateSubclass resolves a class by (school, name) inside q, creating it under parentID
// when absent. An existing class keeps its parent.
func (s *CatalogService) GetOrCreateSubclass(ctx context.Context, q sqlx.ExtContext, schoolID, name, parentID string) (*models.SchoolClass, bool, error) {
	parent := parentID
	class, created, err := s.classes.GetOrCreate(ctx, q, schoolID, strings.TrimSpace(name), &parent)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("subclass created", zap.String("class_id", class.ID), zap.String("name", class.Name))
	}
	return class, created, nil
}

// ListSubjects returns the subjects of a school.
func (s *CatalogService) ListSubjects(ctx context.Context, scope models.AccessScope, schoolID string) ([]models.Subject, error) {
	if !scope.Allows(schoolID) {
		return nil, forbidden("school is outside your scope")
	}
	subjects, err := s.subjects.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	return subjects, nil
}

// CreateSubject adds a subject; the abbreviation is stored upper-cased.
func (s *CatalogService) CreateSubject(ctx context.Context, scope models.AccessScope, schoolID string, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	if !scope.Allows(schoolID) {
		return nil, forbidden("school is outside your scope")
	}
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		return nil, lookupError(err, "school")
	}
	subject := &models.Subject{SchoolID: schoolID, Name: strings.TrimSpace(req.Name)}
	if req.Abbreviation != nil {
		if abbr := strings.ToUpper(strings.TrimSpace(*req.Abbreviation)); abbr != "" {
			if strings.Contains(abbr, "_") {
				return nil, invalid("abbreviation must not contain underscores")
			}
			subject.Abbreviation = &abbr
		}
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, saveError(err, "subject")
	}
	s.cache.InvalidateReports(ctx)
	return subject, nil
}

// SubjectAbbreviationMap indexes the school's subjects by upper-cased abbreviation.
func (s *CatalogService) SubjectAbbreviationMap(ctx context.Context, schoolID string) (map[string]models.Subject, error) {
	subjects, err := s.subjects.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	return abbreviationMap(subjects), nil
}

func abbreviationMap(subjects []models.Subject) map[string]models.Subject {
	out := make(map[string]models.Subject, len(subjects))
	for _, subject := range subjects {
		if key := subject.AbbreviationKey(); key != "" {
			out[key] = subject
		}
	}
	return out
}

// ClassSubjects returns the question counts configured directly on a class.
func (s *CatalogService) ClassSubjects(ctx context.Context, scope models.AccessScope, classID string) ([]models.ClassSubjectDetail, error) {
	if _, err := s.Class(ctx, scope, classID); err != nil {
		return nil, err
	}
	items, err := s.classSubjects.ListByClass(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list class subjects")
	}
	return items, nil
}

// UpsertClassSubjects sets question counts of a class. Every subject must belong to the
// class's school.
func (s *CatalogService) UpsertClassSubjects(ctx context.Context, scope models.AccessScope, classID string, req dto.UpsertClassSubjectsRequest) ([]models.ClassSubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class subjects payload")
	}
	class, err := s.Class(ctx, scope, classID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(req.Items))
	items := make([]models.ClassSubject, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.SubjectID)
		items = append(items, models.ClassSubject{ClassID: classID, SubjectID: item.SubjectID, NumberOfQuestions: item.NumberOfQuestions})
	}
	if err := s.ensureSchoolSubjects(ctx, class.SchoolID, ids); err != nil {
		return nil, err
	}
	if err := s.classSubjects.Upsert(ctx, classID, items); err != nil {
		return nil, saveError(err, "class subject")
	}
	s.cache.InvalidateReports(ctx)
	return s.ClassSubjects(ctx, scope, classID)
}

// ensureSchoolSubjects verifies that every id names a subject of the school.
func (s *CatalogService) ensureSchoolSubjects(ctx context.Context, schoolID string, ids []string) error {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	subjects, err := s.subjects.ListByIDs(ctx, ids)
	if err != nil {
		return internalError(err, "failed to load subjects")
	}
	found := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		if subject.SchoolID == schoolID {
			found[subject.ID] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return invalid("subject " + id + " does not belong to the school")
		}
	}
	return nil
}

// ListStudents returns a page of students visible in scope.
func (s *CatalogService) ListStudents(ctx context.Context, scope models.AccessScope, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	filter.AllSchool = scope.All
	if !scope.All {
		filter.SchoolIDs = scope.SchoolIDs
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// CreateStudent adds a student to a class visible in scope.
func (s *CatalogService) CreateStudent(ctx context.Context, scope models.AccessScope, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if _, err := s.Class(ctx, scope, req.ClassID); err != nil {
		return nil, err
	}
	student := &models.Student{
		StudentCode: strings.TrimSpace(req.StudentCode),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		ClassID:     req.ClassID,
		Status:      models.StudentStatus(req.Status),
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, saveError(err, "student")
	}
	return student, nil
}

// Student fetches a student visible in scope.
func (s *CatalogService) Student(ctx context.Context, scope models.AccessScope, id string) (*models.Student, string, error) {
	if !scope.AllowsStudent(id) {
		return nil, "", forbidden("student is outside your scope")
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, "", lookupError(err, "student")
	}
	schoolID, err := s.students.SchoolOf(ctx, id)
	if err != nil {
		return nil, "", lookupError(err, "student school")
	}
	if !scope.Allows(schoolID) {
		return nil, "", forbidden("student is outside your scope")
	}
	return student, schoolID, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
