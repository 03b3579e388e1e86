package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

const classColumns = "id, school_id, name, parent_id, created_at"

// ClassRepository persists parallel classes and their sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListBySchool returns the classes of a school, parallels first.
func (r *ClassRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.SchoolClass, error) {
	query := "SELECT " + classColumns + " FROM school_classes WHERE school_id = $1 ORDER BY parent_id NULLS FIRST, name ASC"
	var classes []models.SchoolClass
	if err := r.db.SelectContext(ctx, &classes, query, schoolID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID fetches a class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	var class models.SchoolClass
	if err := r.db.GetContext(ctx, &class, "SELECT "+classColumns+" FROM school_classes WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByIDs fetches several classes at once.
func (r *ClassRepository) ListByIDs(ctx context.Context, ids []string) ([]models.SchoolClass, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var c conditions
	c.uuidIn("id", ids)
	var classes []models.SchoolClass
	if err := r.db.SelectContext(ctx, &classes, "SELECT "+classColumns+" FROM school_classes"+c.sql(), c.args...); err != nil {
		return nil, fmt.Errorf("list classes by id: %w", err)
	}
	return classes, nil
}

// ListChildren returns the sections of a parallel class.
func (r *ClassRepository) ListChildren(ctx context.Context, parentID string) ([]models.SchoolClass, error) {
	var classes []models.SchoolClass
	query := "SELECT " + classColumns + " FROM school_classes WHERE parent_id = $1 ORDER BY name ASC"
	if err := r.db.SelectContext(ctx, &classes, query, parentID); err != nil {
		return nil, fmt.Errorf("list subclasses: %w", err)
	}
	return classes, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.SchoolClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = time.Now().UTC()
	query := "INSERT INTO school_classes (" + classColumns + ") VALUES (:id, :school_id, :name, :parent_id, :created_at)"
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

type upsertedClass struct {
	models.SchoolClass
	Inserted bool `db:"inserted"`
}

// GetOrCreate returns the class named name in the school, creating it under parentID when
// missing. An existing class keeps its parent. The boolean reports whether a row was inserted.
func (r *ClassRepository) GetOrCreate(ctx context.Context, q sqlx.ExtContext, schoolID, name string, parentID *string) (*models.SchoolClass, bool, error) {
	const query = `INSERT INTO school_classes (id, school_id, name, parent_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (school_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, school_id, name, parent_id, created_at, (xmax = 0) AS inserted`
	var row upsertedClass
	if err := sqlx.GetContext(ctx, q, &row, query, uuid.NewString(), schoolID, name, parentID, time.Now().UTC()); err != nil {
		return nil, false, fmt.Errorf("get or create class %s: %w", name, err)
	}
	return &row.SchoolClass, row.Inserted, nil
}
