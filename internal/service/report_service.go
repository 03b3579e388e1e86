package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zafarze/gat-sub000/internal/dto"
	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/repository"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, changes repository.JobUpdate) error
	ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup(ttl time.Duration) ([]string, error)
}

type testGetter interface {
	Get(ctx context.Context, scope models.AccessScope, id string) (*models.GatTestDetail, error)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo    reportJobStore
	tests   testGetter
	queue   jobDispatcher
	files   exportFiles
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupSchedule string
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, tests testGetter, queue jobDispatcher, files exportFiles, metrics *MetricsService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:    repo,
		tests:   tests,
		queue:   queue,
		files:   files,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// CreateJob validates the request against the caller's scope, persists the job and enqueues it.
// The scope is stored with the job so the worker renders only what the caller may see.
func (s *ReportService) CreateJob(ctx context.Context, scope models.AccessScope, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	if err := s.validateRequest(ctx, scope, req); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			Format:    req.Format,
			GatTestID: req.GatTestID,
			SecondID:  req.SecondID,
			QuarterID: req.QuarterID,
			SchoolID:  req.SchoolID,
			ClassID:   req.ClassID,
			Grading:   req.Grading,
			Scope:     scope,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, internalError(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.JobUpdate{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		s.metrics.RecordReportJob(string(job.Type), string(status))
		return nil, internalError(err, "failed to enqueue report job")
	}
	s.metrics.RecordReportJob(string(job.Type), string(job.Status))
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata. Only admins may read jobs created by someone else.
func (s *ReportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "report job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.files.ParseToken(token, false)
	if err != nil {
		return nil, forbidden("invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, internalError(err, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, forbidden("token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, forbidden("report not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, internalError(err, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListByStatus(ctx, models.ReportStatusQueued, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("requeued pending report jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup schedules the purge of expired exports. The scheduler stops with ctx.
func (s *ReportService) StartCleanup(ctx context.Context) (*cron.Cron, error) {
	if s.cfg.CleanupSchedule == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.cfg.CleanupSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
		defer cancel()
		s.CleanupExpired(runCtx)
	}); err != nil {
		return nil, err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	s.logger.Info("report cleanup scheduled", zap.String("schedule", s.cfg.CleanupSchedule))
	return c, nil
}

// CleanupExpired deletes the files of finished jobs older than the result TTL.
func (s *ReportService) CleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	removed := 0
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Warn("cleanup list failed", zap.Error(err))
			return
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.files.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.files.Delete(relPath); err != nil {
				s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			removed++
		}
		if len(expired) < 100 {
			break
		}
	}
	if _, err := s.files.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
	s.logger.Debug("report cleanup done", zap.Int("removed", removed))
}

func (s *ReportService) validateRequest(ctx context.Context, scope models.AccessScope, req dto.ReportRequest) error {
	if !isValidReportType(req.Type) {
		return invalid("unsupported report type")
	}
	if !isValidFormat(req.Format) {
		return invalid("unsupported report format")
	}
	if scope.Empty() {
		return forbidden("no schools in scope")
	}
	switch req.Type {
	case models.ReportTypeTestResults:
		if req.GatTestID == "" {
			return invalid("gatTestId is required")
		}
	case models.ReportTypeComparison:
		if req.GatTestID == "" || req.SecondID == "" {
			return invalid("gatTestId and secondTestId are required")
		}
		if req.GatTestID == req.SecondID {
			return invalid("select two different tests")
		}
	}
	if req.SchoolID != "" && !scope.Allows(req.SchoolID) {
		return forbidden("school is outside your scope")
	}
	for _, id := range []string{req.GatTestID, req.SecondID} {
		if id == "" {
			continue
		}
		if _, err := s.tests.Get(ctx, scope, id); err != nil {
			return err
		}
	}
	return nil
}

func isValidReportType(t models.ReportType) bool {
	switch t {
	case models.ReportTypeTestResults, models.ReportTypeComparison, models.ReportTypeGradeDistribution, models.ReportTypeMonitoring:
		return true
	default:
		return false
	}
}

func isValidFormat(f models.ReportFormat) bool {
	return f == models.ReportFormatCSV || f == models.ReportFormatPDF || f == models.ReportFormatXLSX
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job. Failures before the last attempt put the job back in QUEUED.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.JobUpdate{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			w.markFailed(ctx, record, msg)
		} else {
			queued := models.ReportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.JobUpdate{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.JobUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob(string(record.Type), string(finished))
	w.logger.Info("report job finished", zap.String("job_id", job.ID), zap.String("type", string(record.Type)))
	return nil
}

// OnFailure marks a job failed once the queue gives up on it, for example after a timeout.
func (w *ReportWorker) OnFailure(ctx context.Context, job jobs.Job, err error) {
	record, getErr := w.repo.GetByID(ctx, job.ID)
	if getErr != nil {
		w.logger.Warn("failed to load failed job", zap.String("job_id", job.ID), zap.Error(getErr))
		return
	}
	if record.Status == models.ReportStatusFailed || record.Status == models.ReportStatusFinished {
		return
	}
	w.markFailed(ctx, record, err.Error())
}

func (w *ReportWorker) markFailed(ctx context.Context, record *models.ReportJob, msg string) {
	failed := models.ReportStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, record.ID, repository.JobUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job failed", zap.String("job_id", record.ID), zap.Error(err))
		return
	}
	record.Status = failed
	w.metrics.RecordReportJob(string(record.Type), string(failed))
}
