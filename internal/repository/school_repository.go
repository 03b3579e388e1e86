package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

// SchoolRepository persists schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns the schools visible within scope ordered by name.
func (r *SchoolRepository) List(ctx context.Context, scope models.AccessScope) ([]models.School, error) {
	var c conditions
	c.scope("id", scope)
	query := "SELECT id, name, address, created_at, updated_at FROM schools" + c.sql() + " ORDER BY name ASC"
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, c.args...); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// FindByID fetches a school.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := r.db.GetContext(ctx, &school, `SELECT id, name, address, created_at, updated_at FROM schools WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// Create inserts a school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt, school.UpdatedAt = now, now
	const query = `INSERT INTO schools (id, name, address, created_at, updated_at) VALUES (:id, :name, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update modifies a school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}
