package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

func strRef(s string) *string { return &s }

func intRef(v int) *int { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type memSchools struct {
	schools map[string]models.School
}

func (m *memSchools) List(ctx context.Context, scope models.AccessScope) ([]models.School, error) {
	out := make([]models.School, 0)
	for _, s := range m.schools {
		if scope.Allows(s.ID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memSchools) FindByID(ctx context.Context, id string) (*models.School, error) {
	s, ok := m.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *memSchools) Create(ctx context.Context, school *models.School) error {
	school.ID = fmt.Sprintf("school-%d", len(m.schools)+1)
	m.schools[school.ID] = *school
	return nil
}

type memAcademic struct {
	years    map[string]models.AcademicYear
	quarters map[string]models.Quarter
	overlaps bool
}

func (m *memAcademic) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	out := make([]models.AcademicYear, 0, len(m.years))
	for _, y := range m.years {
		out = append(out, y)
	}
	return out, nil
}

func (m *memAcademic) FindYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	y, ok := m.years[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &y, nil
}

func (m *memAcademic) YearOverlaps(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	return m.overlaps, nil
}

func (m *memAcademic) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	year.ID = "year-new"
	m.years[year.ID] = *year
	return nil
}

func (m *memAcademic) ListQuarters(ctx context.Context, yearID string) ([]models.Quarter, error) {
	out := make([]models.Quarter, 0)
	for _, q := range m.quarters {
		if q.YearID == yearID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memAcademic) FindQuarter(ctx context.Context, id string) (*models.Quarter, error) {
	q, ok := m.quarters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &q, nil
}

func (m *memAcademic) CreateQuarter(ctx context.Context, quarter *models.Quarter) error {
	quarter.ID = "quarter-new"
	m.quarters[quarter.ID] = *quarter
	return nil
}

type memClasses struct {
	mu      sync.Mutex
	classes map[string]models.SchoolClass
	created []string
}

func (m *memClasses) ListBySchool(ctx context.Context, schoolID string) ([]models.SchoolClass, error) {
	out := make([]models.SchoolClass, 0)
	for _, c := range m.classes {
		if c.SchoolID == schoolID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClasses) FindByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memClasses) ListByIDs(ctx context.Context, ids []string) ([]models.SchoolClass, error) {
	out := make([]models.SchoolClass, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.classes[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClasses) Create(ctx context.Context, class *models.SchoolClass) error {
	class.ID = "class-" + class.Name
	m.classes[class.ID] = *class
	return nil
}

func (m *memClasses) GetOrCreate(ctx context.Context, q sqlx.ExtContext, schoolID, name string, parentID *string) (*models.SchoolClass, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if c.SchoolID == schoolID && c.Name == name {
			return &c, false, nil
		}
	}
	class := models.SchoolClass{ID: "class-" + name, SchoolID: schoolID, Name: name, ParentID: parentID}
	m.classes[class.ID] = class
	m.created = append(m.created, name)
	return &class, true, nil
}

type memSubjects struct {
	subjects []models.Subject
}

func (m *memSubjects) ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error) {
	out := make([]models.Subject, 0)
	for _, s := range m.subjects {
		if s.SchoolID == schoolID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubjects) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.Subject, 0)
	for _, s := range m.subjects {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubjects) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = fmt.Sprintf("subject-%d", len(m.subjects)+1)
	m.subjects = append(m.subjects, *subject)
	return nil
}

type memClassSubjects struct {
	rows []models.ClassSubject
}

func (m *memClassSubjects) ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error) {
	out := make([]models.ClassSubjectDetail, 0)
	for _, r := range m.rows {
		if r.ClassID == classID {
			out = append(out, models.ClassSubjectDetail{ClassSubject: r})
		}
	}
	return out, nil
}

func (m *memClassSubjects) ListForClasses(ctx context.Context, classIDs []string) ([]models.ClassSubject, error) {
	want := map[string]bool{}
	for _, id := range classIDs {
		want[id] = true
	}
	out := make([]models.ClassSubject, 0)
	for _, r := range m.rows {
		if want[r.ClassID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memClassSubjects) Upsert(ctx context.Context, classID string, items []models.ClassSubject) error {
	kept := make([]models.ClassSubject, 0, len(m.rows))
	for _, r := range m.rows {
		replaced := false
		for _, item := range items {
			if r.ClassID == classID && r.SubjectID == item.SubjectID {
				replaced = true
			}
		}
		if !replaced {
			kept = append(kept, r)
		}
	}
	m.rows = append(kept, items...)
	return nil
}

type memStudents struct {
	byCode    map[string]models.Student
	schoolOf  map[string]string
	failCodes map[string]error
}

func newMemStudents() *memStudents {
	return &memStudents{byCode: map[string]models.Student{}, schoolOf: map[string]string{}, failCodes: map[string]error{}}
}

func (m *memStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.byCode))
	for _, s := range m.byCode {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.byCode {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStudents) SchoolOf(ctx context.Context, studentID string) (string, error) {
	school, ok := m.schoolOf[studentID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return school, nil
}

func (m *memStudents) Create(ctx context.Context, student *models.Student) error {
	if _, ok := m.byCode[student.StudentCode]; ok {
		return appErrors.ErrConflict
	}
	student.ID = "stu-" + student.StudentCode
	m.byCode[student.StudentCode] = *student
	return nil
}

func (m *memStudents) UpsertByCode(ctx context.Context, q sqlx.ExtContext, student *models.Student) (bool, error) {
	if err := m.failCodes[student.StudentCode]; err != nil {
		return false, err
	}
	_, exists := m.byCode[student.StudentCode]
	student.ID = "stu-" + student.StudentCode
	m.byCode[student.StudentCode] = *student
	return !exists, nil
}

type memResults struct {
	rows  []models.ResultRow
	saved map[string]models.StudentResult
	lists int
}

func newMemResults(rows ...models.ResultRow) *memResults {
	return &memResults{rows: rows, saved: map[string]models.StudentResult{}}
}

func (m *memResults) Upsert(ctx context.Context, q sqlx.ExtContext, result *models.StudentResult) error {
	key := result.StudentID + "|" + result.GatTestID
	if existing, ok := m.saved[key]; ok {
		result.ID = existing.ID
	} else {
		result.ID = fmt.Sprintf("res-%d", len(m.saved)+1)
	}
	m.saved[key] = *result
	return nil
}

func (m *memResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRow, error) {
	m.lists++
	in := func(list []string, v string) bool {
		if len(list) == 0 {
			return true
		}
		for _, item := range list {
			if item == v {
				return true
			}
		}
		return false
	}
	out := make([]models.ResultRow, 0)
	for _, row := range m.rows {
		if !filter.Scope.Allows(row.SchoolID) || !filter.Scope.AllowsStudent(row.StudentID) {
			continue
		}
		if filter.StudentID != "" && row.StudentID != filter.StudentID {
			continue
		}
		if !in(filter.GatTestIDs, row.GatTestID) || !in(filter.QuarterIDs, row.QuarterID) || !in(filter.SchoolIDs, row.SchoolID) {
			continue
		}
		if len(filter.ClassIDs) > 0 && !in(filter.ClassIDs, row.ClassID) && !in(filter.ClassIDs, row.BaseClassID()) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	return out, nil
}

func (m *memResults) DeleteByTest(ctx context.Context, gatTestID string) (int64, error) {
	kept := m.rows[:0]
	var n int64
	for _, row := range m.rows {
		if row.GatTestID == gatTestID {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return n, nil
}

type memTests struct {
	tests map[string]models.GatTestDetail
}

func (m *memTests) List(ctx context.Context, filter models.GatTestFilter) ([]models.GatTestDetail, error) {
	out := make([]models.GatTestDetail, 0)
	scope := models.AccessScope{All: filter.AllSchools, SchoolIDs: filter.SchoolIDs}
	for _, t := range m.tests {
		if !scope.Allows(t.SchoolID) {
			continue
		}
		if filter.QuarterID != "" && t.QuarterID != filter.QuarterID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTests) FindByID(ctx context.Context, id string) (*models.GatTestDetail, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memTests) Create(ctx context.Context, test *models.GatTest) error {
	test.ID = "test-new"
	m.tests[test.ID] = models.GatTestDetail{GatTest: *test}
	return nil
}

func (m *memTests) Update(ctx context.Context, test *models.GatTest) error {
	detail := m.tests[test.ID]
	detail.GatTest = *test
	m.tests[test.ID] = detail
	return nil
}

func (m *memTests) Delete(ctx context.Context, id string) error {
	if _, ok := m.tests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tests, id)
	return nil
}

// memTx runs fn without a database and records the outcome of each unit of work.
type memTx struct {
	commits   int
	rollbacks int
}

func (m *memTx) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := fn(nil); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// memCache stores JSON payloads like the redis repository does.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	m.entries = map[string][]byte{}
	return nil
}
