package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

// ClassSubjectRepository stores expected question counts per class and subject.
type ClassSubjectRepository struct {
	db *sqlx.DB
}

// NewClassSubjectRepository creates a new repository.
func NewClassSubjectRepository(db *sqlx.DB) *ClassSubjectRepository {
	return &ClassSubjectRepository{db: db}
}

// ListByClass returns the counts configured directly on a class.
func (r *ClassSubjectRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error) {
	const query = `
SELECT cs.id, cs.class_id, cs.subject_id, cs.number_of_questions,
       s.name AS subject_name, s.abbreviation
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1
ORDER BY s.name ASC`
	var rows []models.ClassSubjectDetail
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return rows, nil
}

// ListForClasses returns the counts of several classes at once.
func (r *ClassSubjectRepository) ListForClasses(ctx context.Context, classIDs []string) ([]models.ClassSubject, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var c conditions
	c.uuidIn("class_id", classIDs)
	var rows []models.ClassSubject
	query := "SELECT id, class_id, subject_id, number_of_questions FROM class_subjects" + c.sql()
	if err := r.db.SelectContext(ctx, &rows, query, c.args...); err != nil {
		return nil, fmt.Errorf("list class subjects for classes: %w", err)
	}
	return rows, nil
}

// Upsert sets the count of every given subject of the class inside one transaction. Subjects
// not listed keep their current counts.
func (r *ClassSubjectRepository) Upsert(ctx context.Context, classID string, items []models.ClassSubject) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert class subjects: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO class_subjects (id, class_id, subject_id, number_of_questions)
VALUES (:id, :class_id, :subject_id, :number_of_questions)
ON CONFLICT (class_id, subject_id) DO UPDATE SET number_of_questions = EXCLUDED.number_of_questions`
	for _, item := range items {
		payload := item
		payload.ClassID = classID
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if _, err = tx.NamedExecContext(ctx, query, &payload); err != nil {
			return fmt.Errorf("upsert class subject: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert class subjects: %w", err)
	}
	return nil
}
