package service

import (
	"github.com/zafarze/gat-sub000/internal/models"
)

// gatFixture is one school with a parallel class "10", two subjects and one test.
type gatFixture struct {
	schools       *memSchools
	academic      *memAcademic
	classes       *memClasses
	subjects      *memSubjects
	classSubjects *memClassSubjects
	students      *memStudents
	results       *memResults
	tests         *memTests
	tx            *memTx
	cache         *memCache

	catalog  *CatalogService
	registry *TestRegistryService
	cacheSvc *CacheService
}

const (
	schoolID  = "school-1"
	otherID   = "school-2"
	baseClass = "class-10"
	mathID    = "subject-mat"
	engID     = "subject-eng"
	testID    = "test-1"
	quarterID = "quarter-1"
)

func newGatFixture() *gatFixture {
	f := &gatFixture{
		schools: &memSchools{schools: map[string]models.School{
			schoolID: {ID: schoolID, Name: "School 1"},
			otherID:  {ID: otherID, Name: "School 2"},
		}},
		academic: &memAcademic{
			years: map[string]models.AcademicYear{
				"year-1": {ID: "year-1", Name: "2024-2025", StartDate: day("2024-09-01"), EndDate: day("2025-05-31")},
			},
			quarters: map[string]models.Quarter{
				quarterID: {ID: quarterID, YearID: "year-1", Name: "Q1", StartDate: day("2024-09-01"), EndDate: day("2024-10-31")},
			},
		},
		classes: &memClasses{classes: map[string]models.SchoolClass{
			baseClass:     {ID: baseClass, SchoolID: schoolID, Name: "10"},
			"class-other": {ID: "class-other", SchoolID: otherID, Name: "10"},
		}},
		subjects: &memSubjects{subjects: []models.Subject{
			{ID: mathID, SchoolID: schoolID, Name: "Math", Abbreviation: strRef("mat")},
			{ID: engID, SchoolID: schoolID, Name: "English", Abbreviation: strRef("ENG")},
			{ID: "subject-bio", SchoolID: otherID, Name: "Biology", Abbreviation: strRef("BIO")},
		}},
		classSubjects: &memClassSubjects{rows: []models.ClassSubject{
			{ClassID: baseClass, SubjectID: mathID, NumberOfQuestions: 3},
			{ClassID: baseClass, SubjectID: engID, NumberOfQuestions: 2},
		}},
		students: newMemStudents(),
		results:  newMemResults(),
		tests: &memTests{tests: map[string]models.GatTestDetail{
			testID: {GatTest: models.GatTest{
				ID: testID, Name: "GAT 1", TestNumber: 1, TestDate: day("2024-10-10"),
				QuarterID: quarterID, ClassID: baseClass, SchoolID: schoolID,
			}, ClassName: "10", SchoolName: "School 1", QuarterName: "Q1"},
		}},
		tx:    &memTx{},
		cache: newMemCache(),
	}
	f.cacheSvc = NewCacheService(f.cache, nil, 0, nil, true)
	f.catalog = NewCatalogService(CatalogStores{
		Schools:       f.schools,
		Academic:      f.academic,
		Classes:       f.classes,
		Subjects:      f.subjects,
		ClassSubjects: f.classSubjects,
		Students:      f.students,
	}, f.cacheSvc, nil, nil)
	f.registry = NewTestRegistryService(RegistryStores{
		Tests:         f.tests,
		Results:       f.results,
		Classes:       f.classes,
		Subjects:      f.subjects,
		ClassSubjects: f.classSubjects,
		Academic:      f.academic,
	}, f.cacheSvc, nil, nil)
	return f
}

func schoolScope() models.AccessScope {
	return models.AccessScope{SchoolIDs: []string{schoolID}}
}
