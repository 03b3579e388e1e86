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

const reportJobColumns = "id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message"

// ReportJobRepository persists export job metadata.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs the repository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query := "INSERT INTO report_jobs (" + reportJobColumns + `)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job. A missing job yields sql.ErrNoRows.
func (r *ReportJobRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, "SELECT "+reportJobColumns+" FROM report_jobs WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobUpdate lists the mutable job fields; nil fields are left untouched.
type JobUpdate struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update applies the non-nil fields of changes.
func (r *ReportJobRepository) Update(ctx context.Context, id string, changes JobUpdate) error {
	var c conditions
	var set []string
	if changes.Status != nil {
		set = append(set, "status = "+c.arg(*changes.Status))
	}
	if changes.Progress != nil {
		set = append(set, "progress = "+c.arg(*changes.Progress))
	}
	if changes.ResultURL != nil {
		set = append(set, "result_url = "+c.arg(*changes.ResultURL))
	}
	if changes.ErrorMessage != nil {
		set = append(set, "error_message = "+c.arg(*changes.ErrorMessage))
	}
	if changes.FinishedAt != nil {
		set = append(set, "finished_at = "+c.arg(*changes.FinishedAt))
	}
	if len(set) == 0 {
		return nil
	}
	c.where("id = " + c.arg(id))

	query := "UPDATE report_jobs SET " + strings.Join(set, ", ") + c.sql()
	if _, err := r.db.ExecContext(ctx, query, c.args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListByStatus returns the oldest jobs in the given status.
func (r *ReportJobRepository) ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + reportJobColumns + " FROM report_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2"
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, status, limit); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs older than cutoff.
func (r *ReportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + reportJobColumns + ` FROM report_jobs
WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}
