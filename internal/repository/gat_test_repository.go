package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zafarze/gat-sub000/internal/models"
)

const gatTestDetailSelect = `SELECT t.id, t.name, t.test_number, t.day, t.test_date, t.quarter_id, t.class_id, t.school_id,
       t.created_at, t.updated_at, c.name AS class_name, sc.name AS school_name, q.name AS quarter_name,
       (SELECT COUNT(*) FROM student_results r WHERE r.gat_test_id = t.id) AS result_count
FROM gat_tests t
JOIN school_classes c ON c.id = t.class_id
JOIN schools sc ON sc.id = t.school_id
JOIN quarters q ON q.id = t.quarter_id`

// GatTestRepository persists test administrations and their subject sets.
type GatTestRepository struct {
	db *sqlx.DB
}

// NewGatTestRepository constructs a GatTestRepository.
func NewGatTestRepository(db *sqlx.DB) *GatTestRepository {
	return &GatTestRepository{db: db}
}

// List returns tests matching the filter, latest first.
func (r *GatTestRepository) List(ctx context.Context, filter models.GatTestFilter) ([]models.GatTestDetail, error) {
	var c conditions
	if !filter.AllSchools {
		c.scope("t.school_id", models.AccessScope{SchoolIDs: filter.SchoolIDs})
	}
	if filter.QuarterID != "" {
		c.where("t.quarter_id = " + c.arg(filter.QuarterID))
	}
	if filter.ClassID != "" {
		c.where("t.class_id = " + c.arg(filter.ClassID))
	}
	if filter.TestNumber > 0 {
		c.where("t.test_number = " + c.arg(filter.TestNumber))
	}
	if filter.Day > 0 {
		c.where("t.day = " + c.arg(filter.Day))
	}
	query := gatTestDetailSelect + c.sql() + " ORDER BY t.test_date DESC, t.name ASC"
	var tests []models.GatTestDetail
	if err := r.db.SelectContext(ctx, &tests, query, c.args...); err != nil {
		return nil, fmt.Errorf("list gat tests: %w", err)
	}
	if err := r.attachSubjects(ctx, tests); err != nil {
		return nil, err
	}
	return tests, nil
}

// FindByID fetches a test with its subject ids.
func (r *GatTestRepository) FindByID(ctx context.Context, id string) (*models.GatTestDetail, error) {
	var test models.GatTestDetail
	if err := r.db.GetContext(ctx, &test, gatTestDetailSelect+" WHERE t.id = $1", id); err != nil {
		return nil, err
	}
	tests := []models.GatTestDetail{test}
	if err := r.attachSubjects(ctx, tests); err != nil {
		return nil, err
	}
	return &tests[0], nil
}

// Create inserts a test together with its subject set.
func (r *GatTestRepository) Create(ctx context.Context, test *models.GatTest) (err error) {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	test.CreatedAt, test.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create gat test: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO gat_tests (id, name, test_number, day, test_date, quarter_id, class_id, school_id, created_at, updated_at)
VALUES (:id, :name, :test_number, :day, :test_date, :quarter_id, :class_id, :school_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create gat test: %w", err)
	}
	if err = replaceSubjects(ctx, tx, test.ID, test.SubjectIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create gat test: %w", err)
	}
	return nil
}

// Update rewrites a test and replaces its subject set.
func (r *GatTestRepository) Update(ctx context.Context, test *models.GatTest) (err error) {
	test.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update gat test: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE gat_tests SET name = :name, test_number = :test_number, day = :day, test_date = :test_date,
    quarter_id = :quarter_id, class_id = :class_id, school_id = :school_id, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("update gat test: %w", err)
	}
	if err = replaceSubjects(ctx, tx, test.ID, test.SubjectIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update gat test: %w", err)
	}
	return nil
}

// Delete removes a test; results and subject links cascade.
func (r *GatTestRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gat_tests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete gat test: %w", err)
	}
	return nil
}

func replaceSubjects(ctx context.Context, tx *sqlx.Tx, testID string, subjectIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM gat_test_subjects WHERE gat_test_id = $1`, testID); err != nil {
		return fmt.Errorf("clear gat test subjects: %w", err)
	}
	if len(subjectIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO gat_test_subjects (gat_test_id, subject_id)
SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, testID, pq.Array(subjectIDs)); err != nil {
		return fmt.Errorf("insert gat test subjects: %w", err)
	}
	return nil
}

type testSubject struct {
	GatTestID string `db:"gat_test_id"`
	SubjectID string `db:"subject_id"`
}

func (r *GatTestRepository) attachSubjects(ctx context.Context, tests []models.GatTestDetail) error {
	if len(tests) == 0 {
		return nil
	}
	ids := make([]string, len(tests))
	for i, t := range tests {
		ids[i] = t.ID
	}
	var c conditions
	c.uuidIn("gat_test_id", ids)
	var links []testSubject
	if err := r.db.SelectContext(ctx, &links, "SELECT gat_test_id, subject_id FROM gat_test_subjects"+c.sql(), c.args...); err != nil {
		return fmt.Errorf("list gat test subjects: %w", err)
	}
	byTest := make(map[string][]string, len(tests))
	for _, link := range links {
		byTest[link.GatTestID] = append(byTest[link.GatTestID], link.SubjectID)
	}
	for i := range tests {
		tests[i].SubjectIDs = byTest[tests[i].ID]
		if tests[i].SubjectIDs == nil {
			tests[i].SubjectIDs = []string{}
		}
	}
	return nil
}
