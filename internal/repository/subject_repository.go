package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

// SubjectRepository persists school subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListBySchool returns the subjects of one school ordered by name.
func (r *SubjectRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Subject, error) {
	var subjects []models.Subject
	const query = `SELECT id, school_id, name, abbreviation FROM subjects WHERE school_id = $1 ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &subjects, query, schoolID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByIDs returns the subjects with the given ids ordered by name.
func (r *SubjectRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var c conditions
	c.uuidIn("id", ids)
	var subjects []models.Subject
	query := "SELECT id, school_id, name, abbreviation FROM subjects" + c.sql() + " ORDER BY name ASC"
	if err := r.db.SelectContext(ctx, &subjects, query, c.args...); err != nil {
		return nil, fmt.Errorf("list subjects by id: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, `SELECT id, school_id, name, abbreviation FROM subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	const query = `INSERT INTO subjects (id, school_id, name, abbreviation) VALUES (:id, :school_id, :name, :abbreviation)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
