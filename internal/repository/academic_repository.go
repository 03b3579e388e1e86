package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

// AcademicRepository persists academic years and their quarters.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// ListYears returns every academic year, latest first.
func (r *AcademicRepository) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, `SELECT id, name, start_date, end_date FROM academic_years ORDER BY start_date DESC`); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindYear fetches one academic year.
func (r *AcademicRepository) FindYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, `SELECT id, name, start_date, end_date FROM academic_years WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// YearOverlaps reports whether [start, end] intersects an existing year other than excludeID.
func (r *AcademicRepository) YearOverlaps(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	query := `SELECT 1 FROM academic_years WHERE start_date <= $2 AND end_date >= $1`
	args := []interface{}{start, end}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check year overlap: %w", err)
	}
	return true, nil
}

// CreateYear inserts an academic year.
func (r *AcademicRepository) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	const query = `INSERT INTO academic_years (id, name, start_date, end_date) VALUES (:id, :name, :start_date, :end_date)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}
	return nil
}

// ListQuarters returns the quarters of a year in time order.
func (r *AcademicRepository) ListQuarters(ctx context.Context, yearID string) ([]models.Quarter, error) {
	var quarters []models.Quarter
	const query = `SELECT id, year_id, name, start_date, end_date FROM quarters WHERE year_id = $1 ORDER BY start_date ASC`
	if err := r.db.SelectContext(ctx, &quarters, query, yearID); err != nil {
		return nil, fmt.Errorf("list quarters: %w", err)
	}
	return quarters, nil
}

// FindQuarter fetches one quarter.
func (r *AcademicRepository) FindQuarter(ctx context.Context, id string) (*models.Quarter, error) {
	var quarter models.Quarter
	if err := r.db.GetContext(ctx, &quarter, `SELECT id, year_id, name, start_date, end_date FROM quarters WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &quarter, nil
}

// CreateQuarter inserts a quarter.
func (r *AcademicRepository) CreateQuarter(ctx context.Context, quarter *models.Quarter) error {
	if quarter.ID == "" {
		quarter.ID = uuid.NewString()
	}
	const query = `INSERT INTO quarters (id, year_id, name, start_date, end_date) VALUES (:id, :year_id, :name, :start_date, :end_date)`
	if _, err := r.db.NamedExecContext(ctx, query, quarter); err != nil {
		return fmt.Errorf("create quarter: %w", err)
	}
	return nil
}
