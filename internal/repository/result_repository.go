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

const resultRowSelect = `SELECT r.id AS result_id, s.id AS student_id, s.student_code, s.first_name, s.last_name,
       c.id AS class_id, c.name AS class_name, c.parent_id AS class_parent_id,
       sc.id AS school_id, sc.name AS school_name,
       t.id AS gat_test_id, t.name AS test_name, t.test_number, t.day, t.test_date, t.class_id AS test_class_id,
       q.id AS quarter_id, q.name AS quarter_name, q.start_date AS quarter_start,
       r.scores, r.total_score
FROM student_results r
JOIN students s ON s.id = r.student_id
JOIN school_classes c ON c.id = s.class_id
JOIN schools sc ON sc.id = c.school_id
JOIN gat_tests t ON t.id = r.gat_test_id
JOIN quarters q ON q.id = t.quarter_id`

// ResultRepository persists scored student results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Upsert stores the result, fully replacing scores of an existing (student, test) pair.
func (r *ResultRepository) Upsert(ctx context.Context, q sqlx.ExtContext, result *models.StudentResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	const query = `INSERT INTO student_results (id, student_id, gat_test_id, scores, total_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (student_id, gat_test_id) DO UPDATE SET scores = EXCLUDED.scores, total_score = EXCLUDED.total_score,
    updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := q.QueryRowxContext(ctx, query, result.ID, result.StudentID, result.GatTestID, result.Scores, result.TotalScore, now)
	if err := row.Scan(&result.ID, &result.CreatedAt); err != nil {
		return fmt.Errorf("upsert student result: %w", err)
	}
	result.UpdatedAt = now
	return nil
}

// DeleteByTest removes every result of a test and returns how many were removed.
func (r *ResultRepository) DeleteByTest(ctx context.Context, gatTestID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_results WHERE gat_test_id = $1`, gatTestID)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete results rows affected: %w", err)
	}
	return n, nil
}

// List returns joined result rows. ClassIDs match a class or any of its sections.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRow, error) {
	var c conditions
	c.scope("sc.id", filter.Scope)
	if filter.Scope.StudentID != "" {
		c.where("s.id = " + c.arg(filter.Scope.StudentID))
	}
	if filter.StudentID != "" {
		c.where("s.id = " + c.arg(filter.StudentID))
	}
	c.uuidIn("t.id", filter.GatTestIDs)
	c.uuidIn("t.quarter_id", filter.QuarterIDs)
	c.uuidIn("sc.id", filter.SchoolIDs)
	if len(filter.ClassIDs) > 0 {
		p := c.arg(pq.Array(filter.ClassIDs))
		c.where(fmt.Sprintf("(c.id = ANY(%s::uuid[]) OR c.parent_id = ANY(%s::uuid[]))", p, p))
	}
	c.intIn("t.test_number", filter.TestNumbers)
	c.intIn("t.day", filter.Days)

	query := resultRowSelect + c.sql() + " ORDER BY r.total_score DESC, s.last_name ASC, s.first_name ASC"
	var rows []models.ResultRow
	if err := r.db.SelectContext(ctx, &rows, query, c.args...); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return rows, nil
}
