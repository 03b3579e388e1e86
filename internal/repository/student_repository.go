package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

const studentColumns = "s.id, s.student_code, s.first_name, s.last_name, s.class_id, s.status, s.created_at, s.updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters and the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var c conditions
	if !filter.AllSchool {
		c.scope("c.school_id", models.AccessScope{SchoolIDs: filter.SchoolIDs})
	}
	if filter.ClassID != "" {
		p := c.arg(filter.ClassID)
		c.where(fmt.Sprintf("(s.class_id = %s OR c.parent_id = %s)", p, p))
	}
	if filter.Search != "" {
		p := c.arg("%" + strings.ToLower(filter.Search) + "%")
		c.where(fmt.Sprintf("(LOWER(s.first_name) LIKE %s OR LOWER(s.last_name) LIKE %s OR s.student_code LIKE %s)", p, p, p))
	}
	base := "FROM students s JOIN school_classes c ON c.id = s.class_id" + c.sql()
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.last_name ASC, s.first_name ASC LIMIT %d OFFSET %d", studentColumns, base, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, c.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, c.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students s WHERE s.id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// SchoolOf returns the school of a student's class.
func (r *StudentRepository) SchoolOf(ctx context.Context, studentID string) (string, error) {
	var schoolID string
	const query = `SELECT c.school_id FROM students s JOIN school_classes c ON c.id = s.class_id WHERE s.id = $1`
	if err := r.db.GetContext(ctx, &schoolID, query, studentID); err != nil {
		return "", err
	}
	return schoolID, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	now := time.Now().UTC()
	student.CreatedAt, student.UpdatedAt = now, now
	const query = `INSERT INTO students (id, student_code, first_name, last_name, class_id, status, created_at, updated_at)
        VALUES (:id, :student_code, :first_name, :last_name, :class_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpsertByCode creates the student or refreshes the name and class of the student holding the
// same code. It reports whether a new row was inserted.
func (r *StudentRepository) UpsertByCode(ctx context.Context, q sqlx.ExtContext, student *models.Student) (bool, error) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	now := time.Now().UTC()
	const query = `INSERT INTO students (id, student_code, first_name, last_name, class_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (student_code) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
    class_id = EXCLUDED.class_id, updated_at = EXCLUDED.updated_at
RETURNING id, created_at, (xmax = 0) AS inserted`
	var inserted bool
	row := q.QueryRowxContext(ctx, query, student.ID, student.StudentCode, student.FirstName, student.LastName, student.ClassID, student.Status, now)
	if err := row.Scan(&student.ID, &student.CreatedAt, &inserted); err != nil {
		return false, fmt.Errorf("upsert student %s: %w", student.StudentCode, err)
	}
	student.UpdatedAt = now
	return inserted, nil
}
